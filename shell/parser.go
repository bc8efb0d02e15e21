package shell

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses raw arguments against a flag set. A nil flag set accepts
// positional arguments only.
type Parser struct {
	flagSet *CommandFlagSet
}

func NewParser(flagSet *CommandFlagSet) *Parser {
	if flagSet == nil {
		flagSet = NewFlagSet()
	}
	return &Parser{
		flagSet: flagSet,
	}
}

func (p *Parser) Parse(raw []string) (*CommandArgs, error) {
	args := &CommandArgs{
		Flags: make(map[string]any),
		Raw:   raw,
	}

	shortToName := make(map[string]string)
	for name, flag := range p.flagSet.Flags {
		if flag.Default != nil {
			args.Flags[name] = flag.Default
		}
		if flag.Short != "" {
			shortToName[flag.Short] = name
		}
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		switch {
		case arg == "--":
			args.Args = append(args.Args, raw[i+1:]...)
			i = len(raw)

		case strings.HasPrefix(arg, "--"):
			key, value, hasValue := strings.Cut(arg[2:], "=")
			flag, exists := p.flagSet.Flags[key]
			if !exists {
				return nil, fmt.Errorf("unknown flag: --%s", key)
			}

			switch {
			case flag.Type == "bool" && !hasValue:
				args.Flags[key] = true
			case hasValue:
				v, err := coerce(value, flag.Type)
				if err != nil {
					return nil, fmt.Errorf("flag --%s: %w", key, err)
				}
				args.Flags[key] = v
			case i+1 < len(raw):
				v, err := coerce(raw[i+1], flag.Type)
				if err != nil {
					return nil, fmt.Errorf("flag --%s: %w", key, err)
				}
				args.Flags[key] = v
				i++
			default:
				return nil, fmt.Errorf("flag --%s requires a value", key)
			}

		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			shorts := arg[1:]
			for j, c := range shorts {
				name, exists := shortToName[string(c)]
				if !exists {
					return nil, fmt.Errorf("unknown flag: -%c", c)
				}

				flag := p.flagSet.Flags[name]
				if flag.Type == "bool" {
					args.Flags[name] = true
					continue
				}

				// A value flag consumes the rest of the group or the next
				// argument.
				value := shorts[j+1:]
				if value == "" {
					if i+1 >= len(raw) {
						return nil, fmt.Errorf("flag -%c requires a value", c)
					}
					i++
					value = raw[i]
				}
				v, err := coerce(value, flag.Type)
				if err != nil {
					return nil, fmt.Errorf("flag -%c: %w", c, err)
				}
				args.Flags[name] = v
				break
			}

		default:
			args.Args = append(args.Args, arg)
		}
	}

	for name, flag := range p.flagSet.Flags {
		if _, ok := args.Flags[name]; flag.Required && !ok {
			if flag.Short != "" {
				return nil, fmt.Errorf("required flag: -%s / --%s", flag.Short, flag.Name)
			}
			return nil, fmt.Errorf("required flag: --%s", flag.Name)
		}
	}

	return args, nil
}

func coerce(value, typ string) (any, error) {
	switch typ {
	case "int":
		return strconv.ParseInt(value, 0, 64)
	case "bool":
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}
