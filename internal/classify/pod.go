package classify

import "strings"

// DefaultPod is the attribution fallback for repositories that match
// no keyword set.
const DefaultPod = "Ratio"

var podKeywords = []struct {
	pod      string
	keywords []string
}{
	{"Nanda", []string{"nanda", "ai", "automation"}},
	{"Ratio", []string{"ratio", "infrastructure", "platform"}},
	{"Meta", []string{"meta", "ops", "process"}},
}

// DeterminePod attributes a repository to a pod by case-insensitive
// substring match on the repository name, falling back to label names,
// then to DefaultPod. Total: never returns an unknown pod.
func DeterminePod(repoName string, labels []interface{}) string {
	name := strings.ToLower(repoName)
	for _, pk := range podKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(name, kw) {
				return pk.pod
			}
		}
	}

	for _, label := range labelNames(labels) {
		lower := strings.ToLower(label)
		for _, pk := range podKeywords {
			for _, kw := range pk.keywords {
				if strings.Contains(lower, kw) {
					return pk.pod
				}
			}
		}
	}

	return DefaultPod
}
