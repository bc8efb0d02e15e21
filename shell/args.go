package shell

// CommandArgs contains parsed command arguments
type CommandArgs struct {
	// Positional arguments
	Args []string
	// Parsed flags keyed by flag name
	Flags map[string]any
	// Raw unparsed arguments
	Raw []string
}

func (a *CommandArgs) Bool(name string) bool {
	v, _ := a.Flags[name].(bool)
	return v
}

func (a *CommandArgs) String(name string) string {
	v, _ := a.Flags[name].(string)
	return v
}

func (a *CommandArgs) Int(name string) int64 {
	v, _ := a.Flags[name].(int64)
	return v
}

// CommandFlagSet defines the expected flags for a command
type CommandFlagSet struct {
	Flags map[string]*CommandFlag
}

// NewFlagSet indexes flags by name.
func NewFlagSet(flags ...*CommandFlag) *CommandFlagSet {
	set := &CommandFlagSet{Flags: make(map[string]*CommandFlag, len(flags))}
	for _, f := range flags {
		set.Flags[f.Name] = f
	}
	return set
}

// CommandFlag represents a single command-line flag
type CommandFlag struct {
	Name        string // e.g. "long"
	Short       string // single-char shorthand, e.g. "l"
	Type        string // "string", "bool" or "int"
	Default     any
	Required    bool
	Description string
}
