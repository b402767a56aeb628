package chat

import (
	"fmt"
	"strings"

	"github.com/i474232898/weathera/internal/common"
)

// AdviceRule maps condition keywords to a health advisory.
type AdviceRule struct {
	Keywords []string
	Advice   string
}

// AdviceRules are checked in order; the first rule with a keyword contained in
// the condition wins.
var AdviceRules = []AdviceRule{
	{
		Keywords: []string{"sunny", "clear", "cerah", "hot"},
		Advice:   "Panas ekstrem: Sakit kepala, lelah. Saran: Paracetamol, Oralit, Air kelapa. Warning: Hindari NSAID berlebihan.",
	},
	{
		Keywords: []string{"rain", "drizzle", "shower", "thunder", "hujan", "gerimis"},
		Advice:   "Musim hujan: Pilek, batuk, demam. Saran: Paracetamol, Obat batuk OTC, Jahe hangat. Warning: Hindari antibiotik tanpa resep.",
	},
	{
		Keywords: []string{"cloudy", "overcast", "gloomy", "mendung", "berawan"},
		Advice:   "Perubahan cuaca: Flu ringan, nyeri sendi. Saran: Paracetamol, Kunyit hangat, Madu. Warning: Pantau kondisi tubuh.",
	},
	{
		Keywords: []string{"wind", "breezy", "mist", "fog", "kabut", "angin"},
		Advice:   "Cuaca dingin/berangin: Hidung tersumbat, bersin. Saran: Antihistamin, Wedang jahe, Kayu manis. Warning: Waspadai obat kantuk.",
	},
	{
		Keywords: []string{"smoke", "haze", "dust", "asap"},
		Advice:   "Kualitas udara buruk: Batuk, mata perih. Saran: Obat batuk OTC, Tetes mata, Masker. Warning: Hindari luar ruangan.",
	},
}

// AdviceFallback is returned when no rule matches.
const AdviceFallback = "Jaga kesehatan ya kak!"

// ResolveAdvice returns the health advisory for a condition text.
func ResolveAdvice(condition string) string {
	if strings.TrimSpace(condition) == "" {
		return AdviceFallback
	}
	for _, rule := range AdviceRules {
		if common.HasAnyFold(condition, rule.Keywords...) {
			return fmt.Sprintf("Rekomendasi Kesehatan (Based on '%s'): %s", condition, rule.Advice)
		}
	}
	return AdviceFallback
}
