// Package classifier decides whether an audit event name is a sensitive
// action and, if so, which severity it carries. The decision is a lookup in
// a table supplied at construction time; the table itself lives in
// configuration so it can be reviewed and extended without code changes.
package classifier

import "github.com/upb/trailguard/models"

// Table maps sensitive event names to their severity
type Table map[string]models.Severity

// DefaultTable returns the built-in table of sensitive IAM actions
func DefaultTable() Table {
	return Table{
		"AttachUserPolicy":        models.SeverityHigh,
		"PutUserPolicy":           models.SeverityHigh,
		"CreateAccessKey":         models.SeverityCritical,
		"DeleteTrail":             models.SeverityCritical,
		"UpdateAssumeRolePolicy":  models.SeverityHigh,
		"CreateUser":              models.SeverityMedium,
		"DeleteUser":              models.SeverityHigh,
		"AddUserToGroup":          models.SeverityMedium,
		"RemoveUserFromGroup":     models.SeverityMedium,
		"CreatePolicy":            models.SeverityHigh,
		"CreatePolicyVersion":     models.SeverityHigh,
		"SetDefaultPolicyVersion": models.SeverityHigh,
	}
}

// Classifier answers classification lookups against an immutable table
type Classifier struct {
	table Table
}

// New creates a classifier over a private copy of table
func New(table Table) *Classifier {
	own := make(Table, len(table))
	for name, severity := range table {
		own[name] = severity
	}
	return &Classifier{table: own}
}

// Classify returns (true, severity) for names in the table and (false, Low)
// for everything else, including the empty string.
func (c *Classifier) Classify(eventName string) (bool, models.Severity) {
	if severity, ok := c.table[eventName]; ok {
		return true, severity
	}
	return false, models.SeverityLow
}

// Len returns the number of sensitive actions known to the classifier
func (c *Classifier) Len() int {
	return len(c.table)
}
