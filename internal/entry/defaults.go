package entry

// WithDefaults returns a copy of the job with every default: attribute
// the job neither sets nor excludes through inherit:default.
func (j *Job) WithDefaults(d *Default) *Job {
	out := *j
	if d == nil {
		return &out
	}
	inherits := func(key string) bool {
		return d.IsSet(key) && !j.IsSet(key) && j.Inherit.Default.Allows(key)
	}
	if inherits("image") {
		out.Image = d.Image
	}
	if inherits("services") {
		out.Services = d.Services
	}
	if inherits("before_script") {
		out.BeforeScript = d.BeforeScript
	}
	if inherits("after_script") {
		out.AfterScript = d.AfterScript
	}
	if inherits("cache") {
		out.Cache = d.Cache
	}
	if inherits("artifacts") {
		out.Artifacts = d.Artifacts
	}
	if inherits("tags") {
		out.Tags = d.Tags
	}
	if inherits("timeout") {
		out.Timeout = d.Timeout
	}
	if inherits("retry") {
		out.Retry = d.Retry
	}
	if inherits("interruptible") {
		out.Interruptible = d.Interruptible
	}
	return &out
}

// InheritedVariables filters global variables through
// inherit:variables.
func (j *Job) InheritedVariables(global []Variable) []Variable {
	var out []Variable
	for _, v := range global {
		if j.Inherit.Variables.Allows(v.Name) {
			out = append(out, v)
		}
	}
	return out
}
