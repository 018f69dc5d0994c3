// Package health provides health classification, worst-status-wins
// aggregation, per-component-type check strategies, and a background
// monitor for orchestrated components.
package health

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status classifies the operational condition of a component.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusWarning     Status = "warning"
	StatusCritical    Status = "critical"
	StatusUnknown     Status = "unknown"
	StatusMaintenance Status = "maintenance"
)

// severity orders statuses for worst-status-wins aggregation:
// critical > warning > healthy > unknown. Maintenance ranks with
// healthy — a deliberately quiesced component is not an incident.
var severity = map[Status]int{
	StatusCritical:    3,
	StatusWarning:     2,
	StatusHealthy:     1,
	StatusMaintenance: 1,
	StatusUnknown:     0,
}

// Worse returns the more severe of two statuses.
func Worse(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// Result is the outcome of one health check pass for one component.
type Result struct {
	Status       Status         `json:"status"`
	Message      string         `json:"message,omitempty"`
	ResponseTime time.Duration  `json:"response_time"`
	LastCheck    time.Time      `json:"last_check"`
	Details      map[string]any `json:"details,omitempty"`
}

// AggregateResults folds the results a checker produced for one
// component into a single result: worst status wins, messages are
// concatenated, detail maps merged with later keys winning.
func AggregateResults(results []Result) Result {
	if len(results) == 0 {
		return Result{
			Status:    StatusUnknown,
			Message:   "no health data",
			LastCheck: time.Now(),
		}
	}

	agg := Result{Status: StatusUnknown, LastCheck: results[0].LastCheck}
	var messages []string
	for _, r := range results {
		agg.Status = Worse(agg.Status, r.Status)
		if r.Message != "" {
			messages = append(messages, r.Message)
		}
		if r.ResponseTime > agg.ResponseTime {
			agg.ResponseTime = r.ResponseTime
		}
		if r.LastCheck.After(agg.LastCheck) {
			agg.LastCheck = r.LastCheck
		}
		if len(r.Details) > 0 {
			if agg.Details == nil {
				agg.Details = make(map[string]any, len(r.Details))
			}
			for k, v := range r.Details {
				agg.Details[k] = v
			}
		}
	}
	agg.Message = strings.Join(messages, "; ")
	return agg
}

// SystemReport is the aggregate snapshot across all monitored
// components, recomputed after each full poll pass.
type SystemReport struct {
	// OverallStatus is the worst status bucket with at least one member.
	OverallStatus Status `json:"overall_status"`

	Timestamp time.Time `json:"timestamp"`

	// Counts holds the number of components per status bucket.
	Counts map[Status]int `json:"counts"`

	// Components maps component id to its latest aggregated result.
	Components map[string]Result `json:"components"`

	// Recommendations are operator-facing strings derived from the
	// current buckets.
	Recommendations []string `json:"recommendations,omitempty"`
}

// buildReport computes a SystemReport from current per-component results.
func buildReport(current map[string]Result) SystemReport {
	report := SystemReport{
		OverallStatus: StatusUnknown,
		Timestamp:     time.Now(),
		Counts:        make(map[Status]int),
		Components:    make(map[string]Result, len(current)),
	}

	var critical, warning, unknown []string
	for id, result := range current {
		report.Components[id] = result
		report.Counts[result.Status]++
		report.OverallStatus = Worse(report.OverallStatus, result.Status)
		switch result.Status {
		case StatusCritical:
			critical = append(critical, id)
		case StatusWarning:
			warning = append(warning, id)
		case StatusUnknown:
			unknown = append(unknown, id)
		}
	}
	sort.Strings(critical)
	sort.Strings(warning)
	sort.Strings(unknown)
	if len(critical) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("investigate or restart critical components: %s", strings.Join(critical, ", ")))
	}
	if len(warning) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("monitor degraded components: %s", strings.Join(warning, ", ")))
	}
	if len(unknown) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("no health data for: %s", strings.Join(unknown, ", ")))
	}
	return report
}
