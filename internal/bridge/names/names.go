// Package names substitutes the cohort built-in type names that collide with types
// the native store reserves for itself
package names

import "sort"

// LocalPrefix is prepended to a substituted name on the native side
const LocalPrefix = "OM_"

// substitutions maps each substituted cohort type name to its cohort guid
var substitutions = map[string]string{
	"Referenceable":  "a32316b8-dc8c-48c5-b12b-71c1b2a080bf",
	"Asset":          "896d14c2-7522-4f6c-8519-757711943fe6",
	"Infrastructure": "c19746ac-b3ec-49ce-af4b-83348fc55e07",
	"Process":        "d8f33bd7-afa9-4a11-a8c7-07dcec83c050",
	"DataSet":        "1449911c-4f44-4c22-abc0-7540154feefb",
}

// RequiresSubstitution reports whether a cohort type name must be renamed locally
func RequiresSubstitution(name string) bool {
	_, ok := substitutions[name]
	return ok
}

// ToLocalName returns the native name for a cohort type name. A substituted name
// only maps when guid is empty or matches the built-in's guid, so a user type that
// merely reuses one of the names is left alone.
func ToLocalName(name, guid string) string {
	builtin, ok := substitutions[name]
	if !ok {
		return name
	}
	if guid != "" && guid != builtin {
		return name
	}
	return LocalPrefix + name
}

// ToProtocolName returns the cohort name for a native type name
func ToProtocolName(local string) string {
	if !IsLocalSubstitute(local) {
		return local
	}
	return local[len(LocalPrefix):]
}

// IsLocalSubstitute reports whether a native name is the substitute of a built-in
func IsLocalSubstitute(local string) bool {
	if len(local) <= len(LocalPrefix) || local[:len(LocalPrefix)] != LocalPrefix {
		return false
	}
	return RequiresSubstitution(local[len(LocalPrefix):])
}

// GUID returns the cohort guid of a substituted built-in
func GUID(name string) (string, bool) {
	guid, ok := substitutions[name]
	return guid, ok
}

// Names returns the substituted cohort names in sorted order
func Names() []string {
	out := make([]string, 0, len(substitutions))
	for name := range substitutions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
