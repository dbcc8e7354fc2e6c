package transfer

import (
	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/metainfo"
)

// Scenario is the disposition chosen for one source torrent.
type Scenario string

const (
	// ScenarioMove adds the torrent to the target.
	ScenarioMove Scenario = "move"
	// ScenarioMergeTrackers injects source-only trackers into the target copy.
	ScenarioMergeTrackers Scenario = "merge_trackers"
	// ScenarioSkip leaves an identical target copy untouched.
	ScenarioSkip Scenario = "skip"
)

func (s Scenario) label() string {
	switch s {
	case ScenarioMove:
		return "Transferred"
	case ScenarioMergeTrackers:
		return "Merged"
	default:
		return "Skipped"
	}
}

// Decide picks the scenario from the target's copy of the torrent. A nil
// onTarget means the hash is absent there. It also returns the source
// trackers the target lacks.
func Decide(onTarget *downloader.Torrent, sourceTrackers []string) (Scenario, []string) {
	if onTarget == nil {
		return ScenarioMove, nil
	}
	missing := metainfo.MissingTrackers(sourceTrackers, onTarget.Trackers)
	if len(missing) > 0 {
		return ScenarioMergeTrackers, missing
	}
	return ScenarioSkip, nil
}
