package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Configuration is the full set of jobs and submission-group policies for a
// run (spec §3, §6).
type Configuration struct {
	Jobs             []Job             `json:"jobs"`
	SubmissionGroups []SubmissionGroup `json:"submission_groups"`
	SetupCommand     string            `json:"setup_command,omitempty"`
	TeardownCommand  string            `json:"teardown_command,omitempty"`
	UserData         map[string]any    `json:"user_data,omitempty"`
}

// GroupByName indexes SubmissionGroups by name for O(1) lookup.
func (c *Configuration) GroupByName() map[string]SubmissionGroup {
	m := make(map[string]SubmissionGroup, len(c.SubmissionGroups))
	for _, g := range c.SubmissionGroups {
		m[g.Name] = g
	}
	return m
}

// JobByID indexes Jobs by id.
func (c *Configuration) JobByID() map[int]Job {
	m := make(map[int]Job, len(c.Jobs))
	for _, j := range c.Jobs {
		m[j.ID] = j
	}
	return m
}

// Validate enforces the fatal-at-load invariants from spec §3/§4.1/§7:
// no cycle in blocked_by, every submission_group reference resolves, and
// max_nodes/poll_interval are identical across all submission groups.
func (c *Configuration) Validate() error {
	groups := c.GroupByName()
	jobs := c.JobByID()

	if len(c.SubmissionGroups) == 0 {
		return fmt.Errorf("configuration: at least one submission_group is required")
	}

	maxNodes := c.SubmissionGroups[0].MaxNodes
	pollInterval := c.SubmissionGroups[0].EffectivePollInterval()
	for _, g := range c.SubmissionGroups {
		if g.MaxNodes != maxNodes {
			return fmt.Errorf("configuration: max_nodes must be identical across submission groups (group %q has %d, expected %d)", g.Name, g.MaxNodes, maxNodes)
		}
		if g.EffectivePollInterval() != pollInterval {
			return fmt.Errorf("configuration: poll_interval must be identical across submission groups (group %q has %d, expected %d)", g.Name, g.EffectivePollInterval(), pollInterval)
		}
	}

	implicitGroup := ""
	if len(c.SubmissionGroups) == 1 {
		implicitGroup = c.SubmissionGroups[0].Name
	}

	for _, j := range c.Jobs {
		group := j.SubmissionGroup
		if group == "" {
			group = implicitGroup
		}
		if group == "" {
			return fmt.Errorf("configuration: job %q has no submission_group and none is implicit", j.EffectiveName())
		}
		if _, ok := groups[group]; !ok {
			return fmt.Errorf("configuration: job %q references unknown submission_group %q", j.EffectiveName(), group)
		}
		for _, blockerID := range j.BlockedBy {
			if _, ok := jobs[blockerID]; !ok {
				return fmt.Errorf("configuration: job %q blocked_by references unknown job id %d", j.EffectiveName(), blockerID)
			}
		}
	}

	return detectCycle(c.Jobs)
}

// detectCycle runs a DFS coloring pass over the blocked_by DAG, returning an
// error describing the first cycle found.
func detectCycle(jobs []Job) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	byID := make(map[int]Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	color := make(map[int]int, len(jobs))

	var visit func(id int, path []int) error
	visit = func(id int, path []int) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("configuration: cycle detected in blocked_by graph: %v", append(path, id))
		}
		color[id] = gray
		for _, dep := range byID[id].BlockedBy {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, j := range jobs {
		if color[j.ID] == white {
			if err := visit(j.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConfigID derives a stable hash of the configuration's canonical JSON
// encoding, used as ClusterState.ConfigID (spec §3).
func (c *Configuration) ConfigID() (string, error) {
	canon, err := canonicalJSON(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON marshals v to JSON with map keys sorted and no insignificant
// whitespace, used both for ConfigID and the P4 round-trip property.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// CanonicalJSON exposes canonicalJSON for round-trip tests (P4).
func CanonicalJSON(v any) ([]byte, error) {
	return canonicalJSON(v)
}
