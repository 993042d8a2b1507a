package env

import (
	"os"
	"strings"
)

// VarPrefix marks process environment variables that become placeholders:
// HITUPLOAD_VAR_TOKEN is available as {{TOKEN}}.
const VarPrefix = "HITUPLOAD_VAR_"

// LoadVariables collects placeholder variables. Later sources win: the
// .env file (when envFile is set) and then the prefixed process
// environment.
func LoadVariables(envFile string) (map[string]any, error) {
	var fileVars map[string]any
	if envFile != "" {
		vars, err := LoadDotEnv(envFile)
		if err != nil {
			return nil, err
		}
		fileVars = make(map[string]any, len(vars))
		for k, v := range vars {
			fileVars[k] = v
		}
	}
	return MergeVariables(fileVars, LoadSystemEnv(VarPrefix)), nil
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns the process environment, limited to keys starting
// with prefix (which is stripped) when prefix is set.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if rest, found := strings.CutPrefix(key, prefix); found && rest != "" {
			result[rest] = value
		}
	}
	return result
}
