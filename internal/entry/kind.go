package entry

// Kind is the entry variant of a node, implied by its position in the
// document.
type Kind uint8

const (
	KindRoot Kind = iota
	KindStages
	KindVariables
	KindVariable
	KindDefault
	KindWorkflow
	KindWorkflowRules
	KindWorkflowRule
	KindJobs
	KindJob
	KindHidden
	KindScript
	KindRun
	KindRunStep
	KindImage
	KindServices
	KindService
	KindCache
	KindCacheItem
	KindCacheKey
	KindArtifacts
	KindReports
	KindRules
	KindRule
	KindChanges
	KindExists
	KindRuleVariables
	KindNeeds
	KindNeed
	KindAllowFailure
	KindExitCodes
	KindRetry
	KindRetryWhen
	KindEnvironment
	KindRelease
	KindInherit
	KindInheritList
	KindInclude
	KindIncludeItem
	KindIncludeRules
	KindIncludeRule
	KindInputValues
	KindSpec
	KindInputs
	KindInput
	KindStringOrList
	KindString
	KindText
	KindStringList
	KindBool
	KindInteger
	KindAny
	KindJobWhen
	KindRuleWhen
	KindWorkflowWhen
	KindIncludeWhen
	KindCacheWhen
	KindCachePolicy
	KindEnvironmentAction
	KindDuration

	kindCount
)

var kindNames = [kindCount]string{
	KindRoot:              "root",
	KindStages:            "stages",
	KindVariables:         "variables",
	KindVariable:          "variable",
	KindDefault:           "default",
	KindWorkflow:          "workflow",
	KindWorkflowRules:     "workflow rules",
	KindWorkflowRule:      "workflow rule",
	KindJobs:              "jobs",
	KindJob:               "job",
	KindHidden:            "hidden job",
	KindScript:            "script",
	KindRun:               "run",
	KindRunStep:           "run step",
	KindImage:             "image",
	KindServices:          "services",
	KindService:           "service",
	KindCache:             "cache",
	KindCacheItem:         "cache item",
	KindCacheKey:          "cache key",
	KindArtifacts:         "artifacts",
	KindReports:           "reports",
	KindRules:             "rules",
	KindRule:              "rule",
	KindChanges:           "changes",
	KindExists:            "exists",
	KindRuleVariables:     "rule variables",
	KindNeeds:             "needs",
	KindNeed:              "need",
	KindAllowFailure:      "allow_failure",
	KindExitCodes:         "exit_codes",
	KindRetry:             "retry",
	KindRetryWhen:         "retry when",
	KindEnvironment:       "environment",
	KindRelease:           "release",
	KindInherit:           "inherit",
	KindInheritList:       "inherit list",
	KindInclude:           "include",
	KindIncludeItem:       "include item",
	KindIncludeRules:      "include rules",
	KindIncludeRule:       "include rule",
	KindInputValues:       "input values",
	KindSpec:              "spec",
	KindInputs:            "inputs",
	KindInput:             "input",
	KindStringOrList:      "string or list",
	KindString:            "string",
	KindText:              "text",
	KindStringList:        "string list",
	KindBool:              "boolean",
	KindInteger:           "integer",
	KindAny:               "any",
	KindJobWhen:           "job when",
	KindRuleWhen:          "rule when",
	KindWorkflowWhen:      "workflow when",
	KindIncludeWhen:       "include when",
	KindCacheWhen:         "cache when",
	KindCachePolicy:       "cache policy",
	KindEnvironmentAction: "environment action",
	KindDuration:          "duration",
}

// String returns the variant name.
func (k Kind) String() string {
	if k < kindCount && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// AllKinds returns every declared variant.
func AllKinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
