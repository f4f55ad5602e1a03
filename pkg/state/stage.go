package state

import (
	"fmt"
	"strings"
)

// Stage is one phase of the guided outline exercise.
type Stage string

const (
	StageCharacters Stage = "characters"
	StageScenario   Stage = "scenario"
	StageConflict   Stage = "conflict"
	StageDone       Stage = "done" // terminal pseudo-stage
)

// Stages lists the working stages in the order they are visited.
var Stages = []Stage{StageCharacters, StageScenario, StageConflict}

// transitions is the only place stage order is defined.
var transitions = map[Stage]Stage{
	StageCharacters: StageScenario,
	StageScenario:   StageConflict,
	StageConflict:   StageDone,
	StageDone:       StageDone,
}

var stageTitles = map[Stage]string{
	StageCharacters: "Characters",
	StageScenario:   "Scenario",
	StageConflict:   "Conflict",
	StageDone:       "Done",
}

// Next returns the stage that follows s. Done is absorbing.
func (s Stage) Next() Stage {
	if next, ok := transitions[s]; ok {
		return next
	}
	return StageDone
}

// Valid reports whether s is a known stage, including Done.
func (s Stage) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsWorking reports whether s is one of the stages a student works through.
func (s Stage) IsWorking() bool {
	return s.Valid() && s != StageDone
}

// Title is the display name of the stage.
func (s Stage) Title() string {
	if t, ok := stageTitles[s]; ok {
		return t
	}
	return string(s)
}

// Index returns the position of s in Stages, len(Stages) for Done, or -1.
func (s Stage) Index() int {
	if s == StageDone {
		return len(Stages)
	}
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Before reports whether s is visited strictly before other.
func (s Stage) Before(other Stage) bool {
	return s.Index() >= 0 && other.Index() >= 0 && s.Index() < other.Index()
}

// ParseStage converts user input such as "Characters" into a Stage.
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}
