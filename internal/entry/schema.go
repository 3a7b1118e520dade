package entry

import (
	"github.com/roach88/pipec/internal/ir"
)

type form uint8

const (
	// formHash is a hash with a fixed set of keys.
	formHash form = 1 << iota

	// formNamed is a hash with arbitrary keys, each child of kind `each`.
	formNamed

	// formList is a list with items of kind `each`.
	formList
)

// problem is a rejected leaf value.
type problem struct {
	code    string
	message string
}

type entrySpec struct {
	forms form

	// keys is the dispatch row for formHash: key -> child variant.
	keys map[string]Kind

	// each is the child variant of formNamed and formList.
	each Kind

	// eachKey overrides each per key for formNamed.
	eachKey func(key string) Kind

	// ignoreKey skips keys of a formHash that are not in keys.
	ignoreKey func(key string) bool

	// single wraps a non-list config of a formList as its only item.
	single bool

	// leaf accepts scalar or list configs that have no children.
	leaf func(v any) *problem

	// nullable lets a nil config through without children.
	nullable bool

	// expect describes the accepted shapes for type mismatch messages.
	expect string

	// check runs cross-key validation on the raw config.
	check func(c *checker)

	// compose assembles the node's value from its children's values.
	compose func(c *composer) any
}

var (
	ruleKeys = map[string]Kind{
		"if":            KindString,
		"changes":       KindChanges,
		"exists":        KindExists,
		"variables":     KindRuleVariables,
		"when":          KindRuleWhen,
		"allow_failure": KindAllowFailure,
		"start_in":      KindDuration,
	}

	defaultKeys = map[string]Kind{
		"image":         KindImage,
		"services":      KindServices,
		"before_script": KindScript,
		"after_script":  KindScript,
		"cache":         KindCache,
		"artifacts":     KindArtifacts,
		"tags":          KindStringList,
		"timeout":       KindDuration,
		"retry":         KindRetry,
		"interruptible": KindBool,
	}

	jobKeys = map[string]Kind{
		"script":         KindScript,
		"run":            KindRun,
		"before_script":  KindScript,
		"after_script":   KindScript,
		"stage":          KindString,
		"image":          KindImage,
		"services":       KindServices,
		"cache":          KindCache,
		"artifacts":      KindArtifacts,
		"rules":          KindRules,
		"needs":          KindNeeds,
		"variables":      KindVariables,
		"when":           KindJobWhen,
		"allow_failure":  KindAllowFailure,
		"tags":           KindStringList,
		"timeout":        KindDuration,
		"retry":          KindRetry,
		"interruptible":  KindBool,
		"environment":    KindEnvironment,
		"release":        KindRelease,
		"inherit":        KindInherit,
		"extends":        KindStringOrList,
		"dependencies":   KindStringList,
		"parallel":       KindInteger,
		"start_in":       KindDuration,
		"resource_group": KindString,
		"coverage":       KindString,
	}
)

// schema is the closed dispatch table: every variant, its accepted shapes
// and, for hashes, the child variant of every allowed key.
var schema map[Kind]*entrySpec

func init() {
	schema = map[Kind]*entrySpec{
		KindRoot: {
			forms: formHash,
			keys: map[string]Kind{
				"stages":    KindStages,
				"variables": KindVariables,
				"default":   KindDefault,
				"workflow":  KindWorkflow,
				"jobs":      KindJobs,
				"include":   KindInclude,
			},
			ignoreKey: hiddenName,
			expect:    "a hash",
			check:     checkRoot,
			compose:   composeRoot,
		},
		KindStages: {
			leaf:    stringList,
			expect:  "an array of strings",
			check:   checkStages,
			compose: composeStringList,
		},
		KindVariables: {
			forms:   formNamed,
			each:    KindVariable,
			expect:  "a hash",
			compose: composeVariables,
		},
		KindVariable: {
			forms: formHash,
			keys: map[string]Kind{
				"value":       KindText,
				"description": KindString,
				"expand":      KindBool,
				"options":     KindStringList,
			},
			leaf:    textValue,
			expect:  "a string, a number or a hash",
			check:   checkVariable,
			compose: composeVariable,
		},
		KindDefault: {
			forms:   formHash,
			keys:    defaultKeys,
			expect:  "a hash",
			compose: composeDefault,
		},
		KindWorkflow: {
			forms: formHash,
			keys: map[string]Kind{
				"name":  KindString,
				"rules": KindWorkflowRules,
			},
			expect:  "a hash",
			compose: composeWorkflow,
		},
		KindWorkflowRules: {
			forms:   formList,
			each:    KindWorkflowRule,
			expect:  "an array of hashes",
			compose: composeRuleList,
		},
		KindWorkflowRule: {
			forms: formHash,
			keys: map[string]Kind{
				"if":        KindString,
				"changes":   KindChanges,
				"exists":    KindExists,
				"variables": KindRuleVariables,
				"when":      KindWorkflowWhen,
			},
			expect:  "a hash",
			compose: composeRule,
		},
		KindJobs: {
			forms: formNamed,
			eachKey: func(key string) Kind {
				if hiddenName(key) {
					return KindHidden
				}
				return KindJob
			},
			expect:  "a hash",
			check:   checkJobs,
			compose: composeJobs,
		},
		KindJob: {
			forms:   formHash,
			keys:    jobKeys,
			expect:  "a hash",
			check:   checkJob,
			compose: composeJob,
		},
		KindHidden: {
			leaf:     func(any) *problem { return nil },
			nullable: true,
			expect:   "anything",
			compose:  func(*composer) any { return nil },
		},
		KindScript: {
			leaf:    script,
			expect:  "a string or a nested array of strings up to 10 levels deep",
			compose: composeScript,
		},
		KindRun: {
			forms:   formList,
			each:    KindRunStep,
			expect:  "an array of hashes",
			compose: composeRun,
		},
		KindRunStep: {
			forms: formHash,
			keys: map[string]Kind{
				"name":   KindString,
				"script": KindString,
				"step":   KindString,
			},
			expect:  "a hash",
			check:   checkRunStep,
			compose: composeRunStep,
		},
		KindImage: {
			forms: formHash,
			keys: map[string]Kind{
				"name":        KindString,
				"entrypoint":  KindStringList,
				"pull_policy": KindStringOrList,
			},
			leaf:    str,
			expect:  "a hash or a string",
			check:   requireKeys("name"),
			compose: composeImage,
		},
		KindServices: {
			forms:   formList,
			each:    KindService,
			expect:  "an array of strings or hashes",
			compose: composeServices,
		},
		KindService: {
			forms: formHash,
			keys: map[string]Kind{
				"name":        KindString,
				"alias":       KindString,
				"entrypoint":  KindStringList,
				"command":     KindStringList,
				"pull_policy": KindStringOrList,
			},
			leaf:    str,
			expect:  "a hash or a string",
			check:   requireKeys("name"),
			compose: composeImage,
		},
		KindCache: {
			forms:   formList,
			each:    KindCacheItem,
			single:  true,
			expect:  "a hash or an array of hashes",
			check:   checkCache,
			compose: composeCache,
		},
		KindCacheItem: {
			forms: formHash,
			keys: map[string]Kind{
				"key":           KindCacheKey,
				"paths":         KindStringList,
				"untracked":     KindBool,
				"policy":        KindCachePolicy,
				"when":          KindCacheWhen,
				"fallback_keys": KindStringList,
			},
			expect:  "a hash",
			compose: composeCacheItem,
		},
		KindCacheKey: {
			forms: formHash,
			keys: map[string]Kind{
				"files":  KindStringList,
				"prefix": KindString,
			},
			leaf:    textValue,
			expect:  "a string, a number or a hash",
			check:   requireKeys("files"),
			compose: composeCacheKey,
		},
		KindArtifacts: {
			forms: formHash,
			keys: map[string]Kind{
				"name":      KindString,
				"paths":     KindStringList,
				"exclude":   KindStringList,
				"untracked": KindBool,
				"when":      KindCacheWhen,
				"expire_in": KindString,
				"expose_as": KindString,
				"reports":   KindReports,
			},
			expect:  "a hash",
			compose: composeArtifacts,
		},
		KindReports: {
			forms:   formNamed,
			each:    KindStringOrList,
			expect:  "a hash",
			compose: composeReports,
		},
		KindRules: {
			forms:   formList,
			each:    KindRule,
			expect:  "an array of hashes",
			compose: composeRuleList,
		},
		KindRule: {
			forms:   formHash,
			keys:    ruleKeys,
			expect:  "a hash",
			check:   checkRule,
			compose: composeRule,
		},
		KindChanges: {
			forms: formHash,
			keys: map[string]Kind{
				"paths":      KindStringList,
				"compare_to": KindString,
			},
			leaf:    stringList,
			expect:  "an array of strings or a hash",
			check:   requireKeys("paths"),
			compose: composeChanges,
		},
		KindExists: {
			forms: formHash,
			keys: map[string]Kind{
				"paths": KindStringList,
			},
			leaf:    stringList,
			expect:  "an array of strings or a hash",
			check:   requireKeys("paths"),
			compose: composeExists,
		},
		KindRuleVariables: {
			forms:   formNamed,
			each:    KindText,
			expect:  "a hash",
			compose: composeRuleVariables,
		},
		KindNeeds: {
			forms:   formList,
			each:    KindNeed,
			expect:  "an array of strings or hashes",
			check:   checkNeeds,
			compose: composeNeeds,
		},
		KindNeed: {
			forms: formHash,
			keys: map[string]Kind{
				"job":       KindString,
				"optional":  KindBool,
				"artifacts": KindBool,
				"pipeline":  KindString,
				"project":   KindString,
				"ref":       KindString,
			},
			leaf:    str,
			expect:  "a string or a hash",
			check:   checkNeed,
			compose: composeNeed,
		},
		KindAllowFailure: {
			forms: formHash,
			keys: map[string]Kind{
				"exit_codes": KindExitCodes,
			},
			leaf:    boolean,
			expect:  "a boolean or a hash",
			check:   requireKeys("exit_codes"),
			compose: composeAllowFailure,
		},
		KindExitCodes: {
			leaf:    exitCodes,
			expect:  "an integer or an array of integers",
			compose: composeExitCodes,
		},
		KindRetry: {
			forms: formHash,
			keys: map[string]Kind{
				"max":  KindInteger,
				"when": KindRetryWhen,
			},
			leaf:    integer,
			expect:  "an integer or a hash",
			check:   checkRetry,
			compose: composeRetry,
		},
		KindRetryWhen: {
			leaf:    stringOrList,
			expect:  "a string or an array of strings",
			compose: composeStringOrList,
		},
		KindEnvironment: {
			forms: formHash,
			keys: map[string]Kind{
				"name":    KindString,
				"url":     KindString,
				"action":  KindEnvironmentAction,
				"on_stop": KindString,
			},
			leaf:    str,
			expect:  "a hash or a string",
			check:   requireKeys("name"),
			compose: composeEnvironment,
		},
		KindRelease: {
			forms: formHash,
			keys: map[string]Kind{
				"tag_name":    KindString,
				"description": KindString,
				"name":        KindString,
				"ref":         KindString,
				"released_at": KindString,
			},
			expect:  "a hash",
			check:   requireKeys("tag_name", "description"),
			compose: composeRelease,
		},
		KindInherit: {
			forms: formHash,
			keys: map[string]Kind{
				"default":   KindInheritList,
				"variables": KindInheritList,
			},
			expect:  "a hash",
			compose: composeInherit,
		},
		KindInheritList: {
			leaf:    boolOrStringList,
			expect:  "a boolean or an array of strings",
			compose: composeInheritPolicy,
		},
		KindInclude: {
			forms:   formList,
			each:    KindIncludeItem,
			single:  true,
			expect:  "a string, a hash or an array of strings and hashes",
			compose: composeIncludes,
		},
		KindIncludeItem: {
			forms: formHash,
			keys: map[string]Kind{
				"local":     KindString,
				"remote":    KindString,
				"project":   KindString,
				"ref":       KindString,
				"file":      KindStringOrList,
				"template":  KindString,
				"component": KindString,
				"inputs":    KindInputValues,
				"rules":     KindIncludeRules,
			},
			leaf:    str,
			expect:  "a string or a hash",
			check:   checkIncludeItem,
			compose: composeIncludeItem,
		},
		KindIncludeRules: {
			forms:   formList,
			each:    KindIncludeRule,
			expect:  "an array of hashes",
			compose: composeRuleList,
		},
		KindIncludeRule: {
			forms: formHash,
			keys: map[string]Kind{
				"if":      KindString,
				"changes": KindChanges,
				"exists":  KindExists,
				"when":    KindIncludeWhen,
			},
			expect:  "a hash",
			compose: composeRule,
		},
		KindInputValues: {
			forms:   formNamed,
			each:    KindAny,
			expect:  "a hash",
			compose: composeInputValues,
		},
		KindSpec: {
			forms: formHash,
			keys: map[string]Kind{
				"inputs":  KindInputs,
				"include": KindInclude,
			},
			expect:  "a hash",
			compose: composeSpec,
		},
		KindInputs: {
			forms:   formNamed,
			each:    KindInput,
			expect:  "a hash",
			compose: func(c *composer) any { return c.config() },
		},
		KindInput: {
			forms: formHash,
			keys: map[string]Kind{
				"default":     KindAny,
				"description": KindString,
				"options":     KindAny,
				"regex":       KindString,
				"type":        KindString,
			},
			nullable: true,
			expect:   "a hash",
		},
		KindStringOrList: {
			leaf:    stringOrList,
			expect:  "a string or an array of strings",
			compose: composeStringOrList,
		},
		KindString: {
			leaf:   str,
			expect: "a string",
		},
		KindText: {
			leaf:    textValue,
			expect:  "a string or a number",
			compose: composeText,
		},
		KindStringList: {
			leaf:    stringList,
			expect:  "an array of strings",
			compose: composeStringList,
		},
		KindBool: {
			leaf:   boolean,
			expect: "a boolean",
		},
		KindInteger: {
			leaf:   integer,
			expect: "an integer",
		},
		KindAny: {
			leaf:     func(any) *problem { return nil },
			nullable: true,
			expect:   "anything",
			compose:  func(c *composer) any { return c.config() },
		},
		KindJobWhen: {
			leaf:   enum(ir.WhenOnSuccess, ir.WhenOnFailure, ir.WhenAlways, ir.WhenManual, ir.WhenDelayed),
			expect: "a string",
		},
		KindRuleWhen: {
			leaf:   enum(ir.WhenOnSuccess, ir.WhenOnFailure, ir.WhenAlways, ir.WhenManual, ir.WhenDelayed, ir.WhenNever),
			expect: "a string",
		},
		KindWorkflowWhen: {
			leaf:   enum(ir.WhenAlways, ir.WhenNever),
			expect: "a string",
		},
		KindIncludeWhen: {
			leaf:   enum(ir.WhenAlways, ir.WhenNever),
			expect: "a string",
		},
		KindCacheWhen: {
			leaf:   enum(ir.WhenOnSuccess, ir.WhenOnFailure, ir.WhenAlways),
			expect: "a string",
		},
		KindCachePolicy: {
			leaf:   enum("pull", "push", "pull-push"),
			expect: "a string",
		},
		KindEnvironmentAction: {
			leaf:   enum("start", "prepare", "stop", "verify", "access"),
			expect: "a string",
		},
		KindDuration: {
			leaf:    duration,
			expect:  "a duration",
			compose: composeText,
		},
	}
}

// Dispatch returns the (parent variant, key) -> child variant table for
// every hash-shaped variant.
func Dispatch() map[Kind]map[string]Kind {
	out := make(map[Kind]map[string]Kind)
	for kind, spec := range schema {
		if spec.forms&formHash == 0 {
			continue
		}
		row := make(map[string]Kind, len(spec.keys))
		for key, child := range spec.keys {
			row[key] = child
		}
		out[kind] = row
	}
	return out
}
