package pipeline

// Step names, used in span names, metric labels and error messages.
const (
	StepIngest        = "ingest"
	StepRawSnapshot   = "raw_snapshot"
	StepCleanExpenses = "clean_expenses"
	StepCleanBudgets  = "clean_budgets"
	StepCleanSnapshot = "clean_snapshot"
	StepAggregate     = "aggregate"
	StepPersistGold   = "persist_gold"
	StepMirrorGold    = "mirror_gold"
	StepRenderReport  = "render_report"
	StepArchive       = "archive"
)

// Targets named in persistence errors raised by the steps themselves.
const (
	targetReport  = "report"
	targetArchive = "archive"
)
