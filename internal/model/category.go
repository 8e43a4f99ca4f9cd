package model

// Category is a named message intent driven by keyword matching.
type Category string

// Built-in categories. Any other configured name is a custom category.
const (
	// CategoryPractice marks a student reporting an uploaded practice.
	CategoryPractice Category = "practice"
	// CategorySent marks a student reporting a sent message.
	CategorySent Category = "sent"
)

func (c Category) String() string {
	return string(c)
}
