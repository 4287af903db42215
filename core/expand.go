package core

import (
	"strings"

	"github.com/josephlewis42/pipesh/core/vos"
)

// ExpandTokens expands variables and tilde prefixes in place.
//
// A token that starts with '$' followed by a name is replaced by the value of
// that variable, or the empty string if it isn't set. Partial tokens like
// "a$B" are left alone. A token that is exactly "~" or starts with "~/" gets
// $HOME substituted for the tilde; when HOME is unset tildes are kept.
func ExpandTokens(env vos.VEnv, tokens []string) []string {
	home, hasHome := env.LookupEnv(vos.EnvHome)

	for i, tok := range tokens {
		switch {
		case len(tok) > 1 && tok[0] == '$':
			tokens[i] = env.Getenv(tok[1:])
		case !hasHome:
			continue
		case tok == "~":
			tokens[i] = home
		case strings.HasPrefix(tok, "~/"):
			tokens[i] = home + tok[1:]
		}
	}
	return tokens
}
