package domain

import "time"

// JST — опорный часовой пояс для всей датовой арифметики сервиса.
// Привязан к фиксированному смещению, чтобы не зависеть от tzdata хоста.
var JST = time.FixedZone("JST", 9*60*60)

// DateLayout — формат календарной даты выпуска газеты.
const DateLayout = "2006-01-02"

// Language — язык статей газеты.
type Language string

const (
	// LangEN — английский (и любой не-японский) контент.
	LangEN Language = "EN"
	// LangJP — японский контент.
	LangJP Language = "JP"
)

// Article представляет одну статью из RSS-ленты.
// Importance заполняется только после прохождения скоринга.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pubDate"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	FeedSource  string    `json:"feedSource"`
	FeedTitle   string    `json:"feedTitle,omitempty"`
	Importance  int       `json:"importance"`
}

// HasImage сообщает, нашлась ли у статьи картинка.
func (a Article) HasImage() bool {
	return a.ImageURL != ""
}

// FeedMetadata описывает одну ленту, участвующую в выпуске.
// IsDefault означает, что лента подставлена системой как резервная,
// а не выбрана пользователем: такие ленты получают штраф и квоту.
type FeedMetadata struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

// FeedResult — результат выгрузки одной ленты.
type FeedResult struct {
	URL      string
	Title    string
	Language string
	Articles []Article
}

// NewspaperRecord — сохранённый выпуск газеты за календарную дату.
// После записи меняется только счётчик просмотров.
type NewspaperRecord struct {
	NewspaperID string     `json:"newspaperId"`
	Date        string     `json:"date"`
	FeedURLs    []string   `json:"feedUrls"`
	Articles    []Article  `json:"articles"`
	Languages   []Language `json:"languages"`
	Summary     string     `json:"summary,omitempty"`
	ViewCount   int64      `json:"viewCount"`
	IsPublic    bool       `json:"isPublic"`
	Locale      string     `json:"locale"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Category возвращает категорию записи во вторичном индексе.
func (r NewspaperRecord) Category() RecordCategory {
	if r.IsPublic {
		return CategoryPublic
	}
	return CategoryHistorical
}

// RecordCategory — категория записи во вторичном индексе хранилища.
type RecordCategory string

const (
	// CategoryPublic — публичные выпуски.
	CategoryPublic RecordCategory = "PUBLIC"
	// CategoryHistorical — личные исторические выпуски.
	CategoryHistorical RecordCategory = "HISTORICAL"
)

// RecordKey идентифицирует один датированный выпуск в хранилище.
type RecordKey struct {
	NewspaperID string
	Date        string
}
