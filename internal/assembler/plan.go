package assembler

import (
	"fmt"
	"math"
	"sort"
)

const (
	// Gaps shorter than this are treated as adjacent speech.
	gapEpsilon = 0.001
	// Speech within this of its slot plays at natural speed.
	durationTolerance = 0.010
	// Never slow speech below this tempo; a short segment with trailing
	// silence reads better than audibly dragged speech.
	slowdownFloor = 0.90
)

// Cue is one synthesized line placed on the source timeline. Start and End
// come from the transcript; ActualDuration is the length of the synthesized
// audio.
type Cue struct {
	Index          int
	Start          float64
	End            float64
	ActualDuration float64
}

// StepKind discriminates plan steps.
type StepKind int

const (
	StepSilence StepKind = iota
	StepSpeech
)

// Step is one element of the assembly plan: a run of silence, or a speech
// segment played at Tempo and, when Trim is set, cut to Duration seconds.
type Step struct {
	Kind     StepKind
	Duration float64
	Index    int
	Tempo    float64
	Trim     bool
}

// Plan lays cues onto the transcript timeline. Each segment is placed at its
// absolute start; silence fills whatever precedes it, including the
// shortfall left by a segment that rendered shorter than its slot. The
// planned track ends at the last cue's End, so the total duration is
// independent of individual segment over- or under-runs.
func Plan(cues []Cue) ([]Step, error) {
	if len(cues) == 0 {
		return nil, fmt.Errorf("plan: no cues")
	}

	ordered := make([]Cue, len(cues))
	copy(ordered, cues)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	var steps []Step
	cursor := 0.0
	for _, cue := range ordered {
		if cue.ActualDuration <= 0 {
			return nil, fmt.Errorf("plan: cue %d has no audio", cue.Index)
		}
		if gap := cue.Start - cursor; gap > gapEpsilon {
			steps = append(steps, Step{Kind: StepSilence, Duration: gap})
			cursor += gap
		}
		speech := speechStep(cue)
		steps = append(steps, speech)
		cursor += renderedDuration(cue, speech)
	}

	last := ordered[len(ordered)-1]
	if trailing := last.End - cursor; trailing > gapEpsilon {
		steps = append(steps, Step{Kind: StepSilence, Duration: trailing})
	}
	return steps, nil
}

// speechStep decides how a cue's audio is fitted to its slot. Overruns are
// sped up and trimmed to the exact slot length; underruns are slowed only
// down to the floor, otherwise left untouched with the shortfall absorbed
// as silence.
func speechStep(cue Cue) Step {
	target := cue.End - cue.Start
	actual := cue.ActualDuration
	step := Step{Kind: StepSpeech, Index: cue.Index, Tempo: 1.0, Duration: target}

	if target <= 0 || math.Abs(actual-target) <= durationTolerance {
		return step
	}
	if actual > target {
		step.Tempo = actual / target
		step.Trim = true
		return step
	}
	if tempo := actual / target; tempo >= slowdownFloor {
		step.Tempo = tempo
	}
	return step
}

func renderedDuration(cue Cue, step Step) float64 {
	if step.Trim {
		return step.Duration
	}
	return cue.ActualDuration / step.Tempo
}
