package journal

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"shadow-decision-recorder/internal/core/model"
)

// **Feature: shadow-decision-recorder, Property 6: 时间戳修复保证单调且绝不回拨**
// **Validates: Requirements 3.1, 3.2**
//
// 对任意时间戳三元组（含乱序），修复后满足 market <= decision <= write，
// 且 market 原样保留、decision/write 只会变大不会变小。
func TestProperty_RepairTimestampsMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("修复后 market <= decision <= write", prop.ForAll(
		func(marketOff, decisionOff, writeOff int64) bool {
			market := base.Add(time.Duration(marketOff) * time.Millisecond)
			decision := base.Add(time.Duration(decisionOff) * time.Millisecond)
			write := base.Add(time.Duration(writeOff) * time.Millisecond)

			e := &model.ShadowTradeJournalEntry{
				MarketTimestampUtc:       &market,
				DecisionTimestampUtc:     &decision,
				JournalWriteTimestampUtc: &write,
			}
			repairTimestamps(e)

			if !e.MarketTimestampUtc.Equal(market) {
				return false
			}
			if e.DecisionTimestampUtc.Before(decision) {
				return false
			}
			if e.JournalWriteTimestampUtc.Before(write) {
				return false
			}
			return !e.DecisionTimestampUtc.Before(*e.MarketTimestampUtc) &&
				!e.JournalWriteTimestampUtc.Before(*e.DecisionTimestampUtc)
		},
		gen.Int64Range(0, 86_400_000),
		gen.Int64Range(0, 86_400_000),
		gen.Int64Range(0, 86_400_000),
	))

	properties.Property("缺失 decision 时 write 以 market 为下限", prop.ForAll(
		func(marketOff, writeOff int64) bool {
			market := base.Add(time.Duration(marketOff) * time.Millisecond)
			write := base.Add(time.Duration(writeOff) * time.Millisecond)

			e := &model.ShadowTradeJournalEntry{
				MarketTimestampUtc:       &market,
				JournalWriteTimestampUtc: &write,
			}
			repairTimestamps(e)

			if e.DecisionTimestampUtc != nil {
				return false
			}
			return !e.JournalWriteTimestampUtc.Before(*e.MarketTimestampUtc)
		},
		gen.Int64Range(0, 86_400_000),
		gen.Int64Range(0, 86_400_000),
	))

	properties.Property("全部缺失时修复不引入时间戳", prop.ForAll(
		func(writeOff int64) bool {
			write := base.Add(time.Duration(writeOff) * time.Millisecond)
			e := &model.ShadowTradeJournalEntry{JournalWriteTimestampUtc: &write}
			repairTimestamps(e)
			return e.MarketTimestampUtc == nil &&
				e.DecisionTimestampUtc == nil &&
				e.JournalWriteTimestampUtc.Equal(write)
		},
		gen.Int64Range(0, 86_400_000),
	))

	properties.TestingRun(t)
}
