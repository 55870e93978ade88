package engine

import (
	"fmt"

	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/parsing"
	"github.com/jonathan/image-labeler/internal/pricing"
)

// summarize fills a run's terminal summary from its result records: counters,
// accuracy, the binary confusion matrix, aggregate cost, and the final
// status. A failure rate above the threshold marks the whole run failed.
func summarize(run *db.Run, records []db.ResultRecord) {
	run.Processed = len(records)
	run.Failed = 0
	var totalCost float64
	for _, rec := range records {
		if rec.Status == db.ResultFailure {
			run.Failed++
		}
		totalCost += rec.Cost
	}
	run.ActualCost = pricing.Round6(totalCost)
	run.CostBreakdown = map[string]float64{run.Model.Provider: run.ActualCost}
	if run.TotalImages > 0 {
		run.Progress = float64(run.Processed) / float64(run.TotalImages) * 100
	}
	run.ETASeconds = nil

	successful := run.Processed - run.Failed
	run.Accuracy = accuracy(records, successful)
	if run.QuestionType == parsing.QuestionBinary {
		run.Confusion = confusion(records)
	}

	if run.TotalImages > 0 && float64(run.Failed)/float64(run.TotalImages) > failureThreshold {
		msg := fmt.Sprintf("%d of %d items failed", run.Failed, run.TotalImages)
		run.Status = db.RunFailed
		run.ErrorMessage = &msg
	} else {
		run.Status = db.RunCompleted
	}
}

// accuracy is correct/successful. Nil when nothing succeeded or no record
// carried ground truth to score against.
func accuracy(records []db.ResultRecord, successful int) *float64 {
	if successful == 0 {
		return nil
	}
	scored := false
	correct := 0
	for _, rec := range records {
		if rec.Correct == nil {
			continue
		}
		scored = true
		if *rec.Correct {
			correct++
		}
	}
	if !scored {
		return nil
	}
	acc := float64(correct) / float64(successful)
	return &acc
}

// confusion builds the binary confusion matrix from records whose prediction
// and ground truth both parse as booleans.
func confusion(records []db.ResultRecord) *db.ConfusionMatrix {
	var m db.ConfusionMatrix
	counted := false

	for _, rec := range records {
		if rec.ParsedAnswer == nil || rec.GroundTruth == nil {
			continue
		}
		pred := parsing.Parse(parsing.QuestionBinary, *rec.ParsedAnswer)
		truth := parsing.Parse(parsing.QuestionBinary, *rec.GroundTruth)
		if pred.Bool == nil || truth.Bool == nil {
			continue
		}
		counted = true
		switch {
		case *pred.Bool && *truth.Bool:
			m.TruePositives++
		case *pred.Bool && !*truth.Bool:
			m.FalsePositives++
		case !*pred.Bool && !*truth.Bool:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}
	}

	if !counted {
		return nil
	}
	return &m
}
