package models

// CategoryAll selects every category in task filters
const CategoryAll = "All"

// Task categories
const (
	CategoryResearch    = "リサーチ"
	CategoryDataEntry   = "データ入力"
	CategoryWriting     = "ライティング"
	CategoryTranslation = "翻訳"
	CategoryDesign      = "デザイン"
	CategoryProgramming = "プログラミング"
	CategorySNS         = "SNS運用"
	CategoryEvent       = "イベント"
	CategoryOther       = "その他"
)

// Categories lists the categories tasks may be filed under, in display order
var Categories = []string{
	CategoryResearch,
	CategoryDataEntry,
	CategoryWriting,
	CategoryTranslation,
	CategoryDesign,
	CategoryProgramming,
	CategorySNS,
	CategoryEvent,
	CategoryOther,
}

// IsValidCategory reports whether c is a known category
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
