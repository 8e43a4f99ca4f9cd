package classify

import (
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/phone"
	"github.com/Veraticus/tally/internal/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()

	rules, err := BuildRules(DefaultCategories())
	require.NoError(t, err)

	return New(Config{Rules: rules},
		phone.NewNormalizer(phone.DefaultConfig()),
		timestamp.NewParser(timestamp.WithLocation(time.UTC)),
		nil)
}

func TestClassifier_Classify(t *testing.T) {
	c := newTestClassifier(t)

	got, err := c.Classify(model.RawMessage{
		Sender:    "+972 50-123-4567",
		Timestamp: "22:06, 8/24/2025",
		Text:      "היי, עלה תרגול",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	msg := got[0]
	assert.Equal(t, model.PhoneIdentity("972501234567"), msg.Sender)
	assert.Equal(t, model.CategoryPractice, msg.Category)
	assert.Equal(t, "24/08/25", msg.Date)
	assert.Equal(t, "22:06, 24/08/25", msg.DateTime)
	assert.Equal(t, time.Date(2025, 8, 24, 22, 6, 0, 0, time.UTC), msg.Instant)
}

func TestClassifier_MultipleCategories(t *testing.T) {
	c := newTestClassifier(t)

	got, err := c.Classify(model.RawMessage{
		Sender:    "0501234567",
		Timestamp: "10:00, 25/08/2025",
		Text:      "שלחתי הודעה וגם עלה תרגול שיעור 3",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.CategoryPractice, got[0].Category)
	assert.Equal(t, model.CategorySent, got[1].Category)

	assert.Equal(t, got[0].Sender, got[1].Sender)
	assert.Equal(t, got[0].DateTime, got[1].DateTime)
}

func TestClassifier_NoMatchSkipsTimestamp(t *testing.T) {
	c := newTestClassifier(t)

	got, err := c.Classify(model.RawMessage{Sender: "?", Timestamp: "?", Text: "בוקר טוב"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClassifier_BadTimestamp(t *testing.T) {
	c := newTestClassifier(t)

	_, err := c.Classify(model.RawMessage{Sender: "0501234567", Timestamp: "?", Text: "עלה תרגול"})
	assert.Error(t, err)
}

func TestClassifier_ClassifyAll(t *testing.T) {
	c := newTestClassifier(t)

	msgs := []model.RawMessage{
		{Sender: "0501234567", Timestamp: "22:06, 8/24/2025", Text: "עלה תרגול"},
		{Sender: "0501234567", Timestamp: "garbage", Text: "עלה תרגול"},
		{Sender: "0529876543", Timestamp: "09:00, 8/25/2025", Text: "שלחתי"},
		{Sender: "0529876543", Timestamp: "garbage", Text: "סתם הודעה"},
	}

	result := c.ClassifyAll(msgs)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, model.CategoryPractice, result.Messages[0].Category)
	assert.Equal(t, model.CategorySent, result.Messages[1].Category)
	assert.Equal(t, model.PhoneIdentity("972529876543"), result.Messages[1].Sender)
}
