package ai

// ExtractedTag is one label produced by a tagger before filtering.
// Confidence is the model's self-reported certainty in [0, 1].
type ExtractedTag struct {
	Label      string
	Confidence float64
}

// TagExamples lists label forms the vision prompt shows the model and the
// mock tagger draws from. They are examples of the expected register
// (short, lowercase, concrete), not a closed vocabulary.
var TagExamples = []string{
	"tent",
	"shelter",
	"hospital",
	"clinic",
	"warehouse",
	"water tank",
	"well",
	"food supplies",
	"blankets",
	"medical supplies",
	"generator",
	"truck",
	"boat",
	"helicopter",
	"road damage",
	"flood",
	"debris",
	"crowd",
	"checkpoint",
	"bridge",
}
