package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/storozhukBM/hookarena/lib/arena"
	"github.com/storozhukBM/hookarena/lib/replay"
)

// renderReport prints the replay summary and the arena state as a table.
func renderReport(w io.Writer, tracePath string, report replay.Report, metrics arena.EnhancedMetrics) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Section", "Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoMergeCells(true)

	rows := [][]string{
		{"replay", "trace", tracePath},
		{"replay", "allocations", strconv.Itoa(report.Allocations)},
		{"replay", "reallocations", strconv.Itoa(report.Reallocations)},
		{"replay", "frees", strconv.Itoa(report.Frees)},
		{"replay", "resets", strconv.Itoa(report.Resets)},
		{"replay", "failures", strconv.Itoa(report.Failures)},
		{"replay", "skipped", strconv.Itoa(report.Skipped)},
		{"replay", "live blocks", strconv.Itoa(report.LiveBlocks)},
		{"replay", "peak live bytes", strconv.FormatUint(uint64(report.PeakLiveBytes), 10)},
		{"arena", "pool size", strconv.Itoa(metrics.MaxCapacity)},
		{"arena", "used bytes", strconv.Itoa(metrics.UsedBytes)},
		{"arena", "available bytes", strconv.Itoa(metrics.AvailableBytes)},
		{"arena", "data bytes", strconv.Itoa(metrics.DataBytes)},
		{"arena", "padding overhead", strconv.Itoa(metrics.PaddingOverhead)},
		{"arena", "served allocations", strconv.Itoa(metrics.CountOfAllocations)},
		{"arena", "recycled allocations", strconv.Itoa(metrics.CountOfRecycledAllocations)},
		{"arena", "fallback allocations", strconv.Itoa(metrics.CountOfFallbackAllocations)},
		{"arena", "free list length", strconv.Itoa(metrics.FreeListLength)},
		{"heap", "held bytes", strconv.Itoa(metrics.AllocatedBytes)},
		{"heap", "allocations", strconv.Itoa(metrics.CountOfOnHeapAllocations)},
	}
	table.AppendBulk(rows)
	table.Render()
}
