// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package processor

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

const (
	killboardBase = "https://zkillboard.com/kill/"
	renderBase    = "https://api.voidspark.org:2053/render"
)

// FormatISK renders a value in billions at or above one billion and in
// millions below it, with two decimals.
func FormatISK(value float64) string {
	if value >= 1e9 {
		return humanize.FormatFloat("#,###.##", value/1e9) + "B"
	}
	return humanize.FormatFloat("#,###.##", value/1e6) + "M"
}

// KillboardURL is the public page for a kill.
func KillboardURL(killID int64) string {
	return killboardBase + strconv.FormatInt(killID, 10) + "/"
}

// ShipImageURL is the render of a ship type.
func ShipImageURL(typeID int64) string {
	return fmt.Sprintf("%s/ship/%d", renderBase, typeID)
}

// CorpImageURL is the logo of a corporation.
func CorpImageURL(corpID int64) string {
	return fmt.Sprintf("%s/corp/%d", renderBase, corpID)
}

// LocationLabel is the one-line location summary shown on intel posts.
func LocationLabel(system, region, corp string) string {
	return fmt.Sprintf("System: %s | Region: %s | Corporation: %s", system, region, corp)
}
