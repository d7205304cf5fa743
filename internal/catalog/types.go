package catalog

// QuestionType identifies how a question is answered and evaluated.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FillBlank      QuestionType = "fill_blank"
	TrueFalse      QuestionType = "true_false"
	Essay          QuestionType = "essay"
)

// Subject is a school subject (e.g., Matematika).
type Subject struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description,omitempty"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
	Color       string `yaml:"color" json:"color,omitempty"`
}

// Question is a single quiz question.
type Question struct {
	ID            string       `yaml:"id" json:"id" validate:"required"`
	SubjectID     string       `yaml:"subject_id" json:"subject_id" validate:"required"`
	Level         int          `yaml:"level" json:"level,omitempty" validate:"gte=0"`
	Text          string       `yaml:"question" json:"question"`
	Type          QuestionType `yaml:"type" json:"type" validate:"required,oneof=multiple_choice fill_blank true_false essay"`
	Options       []string     `yaml:"options" json:"options,omitempty"`
	CorrectAnswer Answer       `yaml:"correct_answer" json:"correct_answer"`
	Explanation   string       `yaml:"explanation" json:"explanation,omitempty"`
	BasePoints    int          `yaml:"base_points" json:"base_points" validate:"gte=0"`
	TimeLimit     int          `yaml:"time_limit" json:"time_limit,omitempty" validate:"gte=0"` // seconds; 0 means no limit
	Hints         []string     `yaml:"hints" json:"hints,omitempty"`
	Difficulty    string       `yaml:"difficulty" json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// Material is a structured learning content unit.
type Material struct {
	ID            string    `yaml:"id" json:"id" validate:"required"`
	SubjectID     string    `yaml:"subject_id" json:"subject_id" validate:"required"`
	Title         string    `yaml:"title" json:"title" validate:"required"`
	Description   string    `yaml:"description" json:"description,omitempty"`
	Content       string    `yaml:"content" json:"content,omitempty"` // legacy plain content, split into sections on load
	Sections      []Section `yaml:"sections" json:"sections,omitempty" validate:"dive"`
	Level         string    `yaml:"level" json:"level,omitempty" validate:"omitempty,oneof=basic intermediate advanced"`
	Duration      int       `yaml:"duration" json:"duration,omitempty" validate:"gte=0"` // estimated reading time in minutes
	Tags          []string  `yaml:"tags" json:"tags,omitempty"`
	Prerequisites []string  `yaml:"prerequisites" json:"prerequisites,omitempty"`
	Order         int       `yaml:"order" json:"order"`
	Objectives    []string  `yaml:"objectives" json:"objectives,omitempty"`
	Summary       string    `yaml:"summary" json:"summary,omitempty"`
}

// Section is one ordered part of a material.
type Section struct {
	ID       string `yaml:"id" json:"id" validate:"required"`
	Title    string `yaml:"title" json:"title"`
	Content  string `yaml:"content" json:"content"`
	Type     string `yaml:"type" json:"type,omitempty" validate:"omitempty,oneof=text image video formula example interactive quiz tip"`
	Order    int    `yaml:"order" json:"order"`
	StudyTip string `yaml:"study_tip" json:"study_tip,omitempty"`
}

// MiniGame is a short standalone game definition.
type MiniGame struct {
	ID          string         `yaml:"id" json:"id" validate:"required"`
	Type        string         `yaml:"type" json:"type" validate:"required,oneof=crossword picture_puzzle quick_quiz drag_drop"`
	SubjectID   string         `yaml:"subject_id" json:"subject_id" validate:"required"`
	Title       string         `yaml:"title" json:"title" validate:"required"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Difficulty  string         `yaml:"difficulty" json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	BasePoints  int            `yaml:"base_points" json:"base_points" validate:"gte=0"`
	TimeLimit   int            `yaml:"time_limit" json:"time_limit,omitempty" validate:"gte=0"`
	Duration    int            `yaml:"duration" json:"duration,omitempty"`
	Data        map[string]any `yaml:"data" json:"data,omitempty"`
}

// Accessory is an avatar item unlocked at a given level.
type Accessory struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Type        string `yaml:"type" json:"type" validate:"required,oneof=hat glasses background pet"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
	UnlockLevel int    `yaml:"unlock_level" json:"unlock_level" validate:"gte=1"`
	Rarity      string `yaml:"rarity" json:"rarity,omitempty" validate:"omitempty,oneof=common rare epic legendary"`
}

// Bundle is the layout of a catalog YAML file. Any key may be omitted.
type Bundle struct {
	Subjects    []Subject   `yaml:"subjects"`
	Questions   []Question  `yaml:"questions"`
	Materials   []Material  `yaml:"materials"`
	MiniGames   []MiniGame  `yaml:"mini_games"`
	Accessories []Accessory `yaml:"accessories"`
}
