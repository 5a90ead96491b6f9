package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/biasaudit/internal/client"
	"github.com/okian/biasaudit/internal/domain/model"
)

func reportTable(r model.Report) func(io.Writer) { //nolint:gocritic // hugeParam
	return func(w io.Writer) {
		fmt.Fprintf(w, "ID:\t%s\n", r.ID)
		fmt.Fprintf(w, "Status:\t%s\n", r.Status)
		fmt.Fprintf(w, "Label:\t%s\n", r.LabelField)
		fmt.Fprintf(w, "Records:\t%d\n", r.RecordCount)
		fmt.Fprintf(w, "Overall AUC:\t%s\n", r.OverallAUC)
		if r.Summary != nil {
			fmt.Fprintf(w, "Final bias metric:\t%s\n", r.Summary.Final)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "Error:\t%s\n", r.Error)
		}
		if len(r.Skipped) > 0 {
			fmt.Fprintf(w, "Skipped:\t%s\n", strings.Join(r.Skipped, ", "))
		}
		if len(r.Results) == 0 {
			return
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SUBGROUP\tSIZE\tSUBGROUP AUC\tBPSN AUC\tBNSP AUC")
		for _, m := range r.Results {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.Subgroup, m.SubgroupSize, m.SubgroupAUC, m.BPSNAUC, m.BNSPAUC)
		}
	}
}

func reportsTable(rs []model.Report) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, "ID\tSTATUS\tRECORDS\tSUBGROUPS\tOVERALL AUC\tCREATED")
		for i := range rs {
			r := &rs[i]
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				r.ID, r.Status, r.RecordCount, len(r.Results), r.OverallAUC, r.CreatedAt.Format(time.RFC3339))
		}
	}
}

func ackTable(ack client.SubmitResponse) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, "ID\tSTATUS\tDUPLICATE")
		fmt.Fprintf(w, "%s\t%s\t%t\n", ack.ID, ack.Status, ack.Duplicate)
	}
}

func batchTable(res client.BatchResult) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, "ACCEPTED\tDUPLICATE\tFAILED")
		fmt.Fprintf(w, "%d\t%d\t%d\n", res.Accepted, res.Duplicate, res.Failed)
	}
}
