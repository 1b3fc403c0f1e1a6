// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package cache

import (
	"sort"
	"strings"
	"sync"
)

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
	value    string
	data     any
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// Trie is a case-insensitive prefix tree used for name lookups. Values keep
// their original casing; matching ignores it.
type Trie struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

// TrieResult is one completed match.
type TrieResult struct {
	Value string
	Data  any
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{root: newTrieNode()}
}

// Insert stores value with its payload. Re-inserting a value replaces the
// payload and returns false.
func (t *Trie) Insert(value string, data any) bool {
	if value == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	for _, ch := range strings.ToLower(value) {
		next, ok := node.children[ch]
		if !ok {
			next = newTrieNode()
			node.children[ch] = next
		}
		node = next
	}

	fresh := !node.terminal
	node.terminal = true
	node.value = value
	node.data = data
	if fresh {
		t.size++
	}
	return fresh
}

// Lookup returns the payload of an exact (case-insensitive) match.
func (t *Trie) Lookup(value string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(strings.ToLower(value))
	if node == nil || !node.terminal {
		return nil, false
	}
	return node.data, true
}

// PrefixSearch returns up to limit values starting with prefix, ordered by
// length and then alphabetically so the closest completions come first.
func (t *Trie) PrefixSearch(prefix string, limit int) []TrieResult {
	if limit <= 0 {
		limit = 10
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(strings.ToLower(prefix))
	if node == nil {
		return nil
	}

	var out []TrieResult
	collect(node, &out)
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Value) != len(out[j].Value) {
			return len(out[i].Value) < len(out[j].Value)
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Walk calls fn for every stored value until fn returns false.
func (t *Trie) Walk(fn func(TrieResult) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var all []TrieResult
	collect(t.root, &all)
	for _, r := range all {
		if !fn(r) {
			return
		}
	}
}

// Size returns the number of stored values.
func (t *Trie) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// must be called with mu held
func (t *Trie) find(key string) *trieNode {
	node := t.root
	for _, ch := range key {
		next, ok := node.children[ch]
		if !ok {
			return nil
		}
		node = next
	}
	return node
}

func collect(node *trieNode, out *[]TrieResult) {
	if node.terminal {
		*out = append(*out, TrieResult{Value: node.value, Data: node.data})
	}
	for _, child := range node.children {
		collect(child, out)
	}
}
