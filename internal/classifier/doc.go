// Package classifier assigns a severity level to raw log lines.
//
// # Overview
//
// Classification is in-band: a line is upper-cased once and matched against
// an ordered list of rules. Each rule binds a level to a set of substring
// tokens. Rules are evaluated in order and the first rule with a matching
// token wins; a line matching no rule is INFO.
//
// The default rule order is ERROR, WARN, DEBUG so that an error signal is never
// masked by a coincidental "warn" substring elsewhere in the same line:
//
//	c := classifier.New(classifier.DefaultRules())
//	c.Classify("Connection refused to database:5432") // ERROR
//	c.Classify("High memory usage detected")          // WARN
//	c.Classify("Health check passed")                 // INFO
//
// # Policy
//
// Token sets and their order are a policy surface, not constants. Real log
// formats vary, so rules are supplied through configuration (see
// internal/config) and DefaultRules is only the baseline.
//
// Classify is pure, total and deterministic. A Classifier is immutable after
// construction and safe for concurrent use.
package classifier
