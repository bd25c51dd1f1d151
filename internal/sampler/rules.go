package sampler

import (
	"strings"

	"github.com/xtxerr/lagmon/config"
	"github.com/xtxerr/lagmon/internal/types"
)

// Rule classifies process-table rows into a component class. Matching is
// case-insensitive substring search over the process name and command
// line, mirroring the externally supplied pattern-table contract.
type Rule struct {
	Class           types.ComponentClass
	Source          types.SourceKind
	NameContains    []string
	CmdlineContains []string
	MinCPUPercent   float64
}

// RuleFromConfig builds a Rule from its configuration form. The class
// string must already be validated.
func RuleFromConfig(sc config.SamplerConfig) Rule {
	class, _ := types.ParseComponentClass(sc.Class)
	return Rule{
		Class:           class,
		Source:          types.SourceProcessScan,
		NameContains:    lowerAll(sc.NameContains),
		CmdlineContains: lowerAll(sc.CmdlineContains),
		MinCPUPercent:   sc.MinCPUPercent,
	}
}

// Matches reports whether the process row satisfies this rule.
func (r *Rule) Matches(p *ProcessInfo) bool {
	if r.MinCPUPercent > 0 && p.CPUPercent < r.MinCPUPercent {
		return false
	}

	name := strings.ToLower(p.Name)
	for _, pat := range r.NameContains {
		if strings.Contains(name, pat) {
			return true
		}
	}

	if len(r.CmdlineContains) > 0 {
		cmdline := strings.ToLower(p.Cmdline)
		for _, pat := range r.CmdlineContains {
			if strings.Contains(cmdline, pat) {
				return true
			}
		}
	}

	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
