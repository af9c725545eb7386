package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/trailguard/models"
)

func TestClassify_DefaultTable(t *testing.T) {
	c := New(DefaultTable())

	tests := []struct {
		eventName     string
		wantSensitive bool
		wantSeverity  models.Severity
	}{
		{"CreateAccessKey", true, models.SeverityCritical},
		{"DeleteTrail", true, models.SeverityCritical},
		{"AttachUserPolicy", true, models.SeverityHigh},
		{"PutUserPolicy", true, models.SeverityHigh},
		{"UpdateAssumeRolePolicy", true, models.SeverityHigh},
		{"DeleteUser", true, models.SeverityHigh},
		{"CreatePolicy", true, models.SeverityHigh},
		{"CreatePolicyVersion", true, models.SeverityHigh},
		{"SetDefaultPolicyVersion", true, models.SeverityHigh},
		{"CreateUser", true, models.SeverityMedium},
		{"AddUserToGroup", true, models.SeverityMedium},
		{"RemoveUserFromGroup", true, models.SeverityMedium},
		{"DescribeInstances", false, models.SeverityLow},
		{"createaccesskey", false, models.SeverityLow},
		{"", false, models.SeverityLow},
		{"Unknown", false, models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.eventName, func(t *testing.T) {
			sensitive, severity := c.Classify(tt.eventName)
			assert.Equal(t, tt.wantSensitive, sensitive)
			assert.Equal(t, tt.wantSeverity, severity)
		})
	}
}

func TestNew_CopiesTable(t *testing.T) {
	table := Table{"CreateUser": models.SeverityMedium}
	c := New(table)

	table["CreateUser"] = models.SeverityCritical
	table["DeleteBucket"] = models.SeverityHigh

	_, severity := c.Classify("CreateUser")
	assert.Equal(t, models.SeverityMedium, severity)
	sensitive, _ := c.Classify("DeleteBucket")
	assert.False(t, sensitive)
	assert.Equal(t, 1, c.Len())
}

func TestParseTable(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		table, err := ParseTable([]byte("sensitive_actions:\n  CreateAccessKey: Critical\n  PutBucketPolicy: High\n"))
		require.NoError(t, err)
		assert.Equal(t, Table{
			"CreateAccessKey": models.SeverityCritical,
			"PutBucketPolicy": models.SeverityHigh,
		}, table)
	})

	t.Run("unknown severity", func(t *testing.T) {
		_, err := ParseTable([]byte("sensitive_actions:\n  CreateAccessKey: Urgent\n"))
		assert.Error(t, err)
	})

	t.Run("empty table", func(t *testing.T) {
		_, err := ParseTable([]byte("sensitive_actions: {}\n"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseTable([]byte("sensitive_actions: [\n"))
		assert.Error(t, err)
	})
}

func TestLoadTable(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		table, err := LoadTable("")
		require.NoError(t, err)
		assert.Equal(t, DefaultTable(), table)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "classification.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sensitive_actions:\n  StopLogging: Critical\n"), 0o600))

		table, err := LoadTable(path)
		require.NoError(t, err)

		sensitive, severity := New(table).Classify("StopLogging")
		assert.True(t, sensitive)
		assert.Equal(t, models.SeverityCritical, severity)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
