package pipeline

import (
	"fmt"
	"slices"
	"strings"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageClone           StageName = "clone"
	StageDocs            StageName = "docs"
	StageIcon            StageName = "icon"
	StageDash            StageName = "dash"
	StageFork            StageName = "fork"
	StageCreateDirectory StageName = "create-directory"
	StageRemoveOld       StageName = "remove-old"
	StageCopyContents    StageName = "copy-contents"
	StageFillForms       StageName = "fill-forms"
	StageCommit          StageName = "commit"
	StagePush            StageName = "push"
	StagePullRequest     StageName = "pull-request"
)

// Tag groups stages.
type Tag string

const (
	TagBuild      Tag = "build"
	TagContribute Tag = "contribute"
)

// stageDef describes a stage: its tag, the stages whose workspace output it
// consumes, and its implementation.
type stageDef struct {
	name  StageName
	tag   Tag
	needs []StageName
	run   func(*Pipeline, *runContext) error
}

// stages is the canonical execution order.
var stages = []stageDef{
	{name: StageClone, tag: TagBuild, run: (*Pipeline).clone},
	{name: StageDocs, tag: TagBuild, needs: []StageName{StageClone}, run: (*Pipeline).docs},
	{name: StageIcon, tag: TagBuild, needs: []StageName{StageDocs}, run: (*Pipeline).icon},
	{name: StageDash, tag: TagBuild, needs: []StageName{StageDocs, StageIcon}, run: (*Pipeline).dash},
	{name: StageFork, tag: TagContribute, run: (*Pipeline).fork},
	{name: StageCreateDirectory, tag: TagContribute, needs: []StageName{StageFork}, run: (*Pipeline).createDirectory},
	{name: StageRemoveOld, tag: TagContribute, needs: []StageName{StageFork}, run: (*Pipeline).removeOld},
	{name: StageCopyContents, tag: TagContribute, needs: []StageName{StageFork, StageDash}, run: (*Pipeline).copyContents},
	{name: StageFillForms, tag: TagContribute, needs: []StageName{StageFork}, run: (*Pipeline).fillForms},
	{name: StageCommit, tag: TagContribute, needs: []StageName{StageFork}, run: (*Pipeline).commit},
	{name: StagePush, tag: TagContribute, needs: []StageName{StageFork}, run: (*Pipeline).push},
	{name: StagePullRequest, tag: TagContribute, run: (*Pipeline).pullRequest},
}

func lookupStage(name StageName) (stageDef, bool) {
	for _, s := range stages {
		if s.name == name {
			return s, true
		}
	}
	return stageDef{}, false
}

// StageNames lists every stage in execution order.
func StageNames() []StageName {
	names := make([]StageName, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

// StagesForTag lists the stages carrying tag in execution order.
func StagesForTag(tag Tag) []StageName {
	var names []StageName
	for _, s := range stages {
		if s.tag == tag {
			names = append(names, s.name)
		}
	}
	return names
}

// ResolveStages turns explicit stage names and tags into a deduplicated list in
// execution order. With neither given, every stage is selected.
func ResolveStages(names []StageName, tags []Tag) ([]StageName, error) {
	if len(names) == 0 && len(tags) == 0 {
		return StageNames(), nil
	}

	selected := make(map[StageName]bool)
	var unknown []string
	for _, n := range names {
		if _, ok := lookupStage(n); !ok {
			unknown = append(unknown, string(n))
			continue
		}
		selected[n] = true
	}
	for _, t := range tags {
		tagged := StagesForTag(t)
		if len(tagged) == 0 {
			unknown = append(unknown, "tag:"+string(t))
			continue
		}
		for _, n := range tagged {
			selected[n] = true
		}
	}
	if len(unknown) > 0 {
		return nil, derrors.ValidationFailed("stages", "unknown "+strings.Join(unknown, ", ")).
			WithContext("known", StageNames())
	}

	var out []StageName
	for _, s := range stages {
		if selected[s.name] {
			out = append(out, s.name)
		}
	}
	return out, nil
}

// missingInputs reports selected stages whose workspace inputs come from
// unselected stages. Only meaningful for workspaces that do not outlive a run.
func missingInputs(selected []StageName) []string {
	var missing []string
	for _, name := range selected {
		def, _ := lookupStage(name)
		for _, need := range def.needs {
			if !slices.Contains(selected, need) {
				missing = append(missing, fmt.Sprintf("%s needs %s", name, need))
			}
		}
	}
	return missing
}

func hasTag(selected []StageName, tag Tag) bool {
	for _, name := range selected {
		if def, _ := lookupStage(name); def.tag == tag {
			return true
		}
	}
	return false
}
