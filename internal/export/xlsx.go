// Package export renders productivity reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/zapdesk/zapmetrics/internal/analytics"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

const (
	agentsSheet  = "Productivity"
	summarySheet = "Summary"
)

var agentHeader = []any{
	"Agent ID", "Name", "Department", "Role",
	"Conversations", "Active", "Finished",
	"Sent", "Received", "Total Messages",
	"Avg Response (s)", "Best Response (s)",
	"Resolution Rate", "Satisfaction",
	"Response Score", "Activity Score",
	"Productivity", "Scored",
}

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename returns the download name for a report.
func Filename(rep analytics.ProductivityReport) string {
	return fmt.Sprintf("productivity-%s-%s.xlsx",
		rep.Window.Start.Format("20060102"),
		rep.Window.End.Format("20060102"))
}

// WriteProductivity writes rep as an XLSX workbook with one row
// per agent and a summary sheet.
func WriteProductivity(w io.Writer, rep analytics.ProductivityReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", agentsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(agentsSheet, "A1", &agentHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, u := range rep.Users {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			u.AgentID, u.Name, u.Department, u.Role,
			u.TotalConversations, u.ActiveConversations,
			u.FinishedConversations,
			u.SentMessages, u.ReceivedMessages, u.TotalMessages,
			optCell(u.AvgResponseTime), optCell(u.BestResponseTime),
			u.ResolutionRate, u.CustomerSatisfaction,
			u.ResponseTimeScore, u.ActivityScore,
			u.ProductivityScore, u.Scored,
		}
		if err := f.SetSheetRow(agentsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing agent %s: %w", u.AgentID, err)
		}
	}
	if err := f.SetPanes(agentsSheet, &excelize.Panes{
		Freeze: true, YSplit: 1,
		TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("adding summary sheet: %w", err)
	}
	summary := [][]any{
		{"Window Start", timeutil.Format(rep.Window.Start)},
		{"Window End", timeutil.Format(rep.Window.End)},
		{"Granularity", string(rep.Window.Granularity)},
		{"Organization Score", rep.Productivity.OrganizationScore},
		{"Scored Agents", rep.Productivity.ScoredAgents},
		{"Excluded Agents", rep.Productivity.ExcludedAgents},
	}
	for _, d := range rep.Degraded {
		summary = append(summary, []any{"Degraded", d})
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func optCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
