// Package eventgen produces synthetic CloudTrail management events wrapped
// in EventBridge envelopes, for seeding development stores and queues.
package eventgen

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/services/classifier"
)

// routineEvents are read-only calls that never classify as sensitive
var routineEvents = []string{
	"DescribeInstances",
	"DescribeSecurityGroups",
	"GetCallerIdentity",
	"GetObject",
	"ListBuckets",
	"ListRoles",
	"ListUsers",
	"LookupEvents",
}

// Options tunes the generated stream
type Options struct {
	// Seed makes the stream reproducible; 0 picks a random seed
	Seed uint64

	// Actors is the size of the IAM user pool events are drawn from
	Actors int

	// SensitiveRatio is the share of events drawn from the sensitive table
	SensitiveRatio float64

	// End and Window bound eventTime to [End-Window, End]
	End    time.Time
	Window time.Duration

	AccountID string
}

// Envelope is the EventBridge shape CloudTrail events arrive in
type Envelope struct {
	Version    string `json:"version"`
	ID         string `json:"id"`
	DetailType string `json:"detail-type"`
	Source     string `json:"source"`
	Account    string `json:"account"`
	Time       string `json:"time"`
	Region     string `json:"region"`
	Detail     Record `json:"detail"`
}

// Record is the subset of a CloudTrail record the pipeline reads, plus a
// few fields that make the raw payload look realistic
type Record struct {
	EventVersion    string       `json:"eventVersion"`
	EventID         string       `json:"eventID"`
	EventName       string       `json:"eventName"`
	EventSource     string       `json:"eventSource"`
	EventTime       string       `json:"eventTime"`
	AWSRegion       string       `json:"awsRegion"`
	SourceIPAddress string       `json:"sourceIPAddress"`
	UserAgent       string       `json:"userAgent"`
	UserIdentity    UserIdentity `json:"userIdentity"`
	ReadOnly        bool         `json:"readOnly"`
}

// UserIdentity identifies the caller
type UserIdentity struct {
	Type        string `json:"type"`
	ARN         string `json:"arn"`
	AccountID   string `json:"accountId"`
	PrincipalID string `json:"principalId"`
	UserName    string `json:"userName"`
}

// Generator produces events. It is not safe for concurrent use.
type Generator struct {
	faker     *gofakeit.Faker
	opts      Options
	sensitive []string
	actors    []UserIdentity
	ips       []string
}

// New creates a generator that draws sensitive names from table
func New(table classifier.Table, opts Options) *Generator {
	if opts.Actors <= 0 {
		opts.Actors = 5
	}
	if opts.SensitiveRatio < 0 {
		opts.SensitiveRatio = 0
	}
	if opts.SensitiveRatio > 1 {
		opts.SensitiveRatio = 1
	}
	if opts.End.IsZero() {
		opts.End = time.Now().UTC()
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.AccountID == "" {
		opts.AccountID = "123456789012"
	}

	sensitive := make([]string, 0, len(table))
	for name := range table {
		sensitive = append(sensitive, name)
	}
	sort.Strings(sensitive)

	g := &Generator{
		faker:     gofakeit.New(opts.Seed),
		opts:      opts,
		sensitive: sensitive,
	}

	for i := 0; i < opts.Actors; i++ {
		name := fmt.Sprintf("%s.%s", g.faker.FirstName(), g.faker.LastName())
		g.actors = append(g.actors, UserIdentity{
			Type:        "IAMUser",
			ARN:         fmt.Sprintf("arn:aws:iam::%s:user/%s", opts.AccountID, name),
			AccountID:   opts.AccountID,
			PrincipalID: fmt.Sprintf("AIDA%s", g.faker.LetterN(16)),
			UserName:    name,
		})
		g.ips = append(g.ips, g.faker.IPv4Address())
	}

	return g
}

// Next returns the next envelope
func (g *Generator) Next() Envelope {
	actorIdx := g.faker.Number(0, len(g.actors)-1)
	actor := g.actors[actorIdx]

	name := g.faker.RandomString(routineEvents)
	readOnly := true
	if len(g.sensitive) > 0 && g.faker.Float64Range(0, 1) < g.opts.SensitiveRatio {
		name = g.faker.RandomString(g.sensitive)
		readOnly = false
	}

	start := g.opts.End.Add(-g.opts.Window)
	eventTime := g.faker.DateRange(start, g.opts.End).UTC().Truncate(time.Second)
	region := g.faker.RandomString([]string{"us-east-1", "us-west-2", "eu-west-1"})

	return Envelope{
		Version:    "0",
		ID:         g.faker.UUID(),
		DetailType: "AWS API Call via CloudTrail",
		Source:     "aws." + serviceFor(name),
		Account:    g.opts.AccountID,
		Time:       eventTime.Format(models.CloudTrailTimeLayout),
		Region:     region,
		Detail: Record{
			EventVersion:    "1.09",
			EventID:         uuid.NewString(),
			EventName:       name,
			EventSource:     serviceFor(name) + ".amazonaws.com",
			EventTime:       eventTime.Format(models.CloudTrailTimeLayout),
			AWSRegion:       region,
			SourceIPAddress: g.ips[actorIdx],
			UserAgent:       g.faker.UserAgent(),
			UserIdentity:    actor,
			ReadOnly:        readOnly,
		},
	}
}

// NextJSON returns the next envelope encoded as JSON
func (g *Generator) NextJSON() ([]byte, error) {
	return json.Marshal(g.Next())
}

func serviceFor(eventName string) string {
	switch eventName {
	case "DescribeInstances", "DescribeSecurityGroups":
		return "ec2"
	case "GetObject", "ListBuckets":
		return "s3"
	case "GetCallerIdentity":
		return "sts"
	case "LookupEvents", "DeleteTrail":
		return "cloudtrail"
	default:
		return "iam"
	}
}
