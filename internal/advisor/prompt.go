package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Situation is what the user tells the advisor about themselves. Nil amounts
// are unknown.
type Situation struct {
	Salary *int64
	Money  *int64
	Period int
}

// BuildPrompt renders the recommendation prompt for a situation and a
// product digest; digest is embedded as indented JSON.
func BuildPrompt(s Situation, digest interface{}) (string, error) {
	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode product digest: %w", err)
	}

	var b strings.Builder
	b.WriteString("당신은 금융 전문가이며, 사용자의 상황에 맞는 금융 상품을 추천해주는 AI입니다.\n\n")
	b.WriteString("사용자 정보:\n")
	fmt.Fprintf(&b, "- 월 소득: %s\n", won(s.Salary))
	fmt.Fprintf(&b, "- 현재 자산: %s\n", won(s.Money))
	fmt.Fprintf(&b, "- 원하는 기간(개월 수): %d개월\n\n", s.Period)
	b.WriteString("금융 상품 데이터:\n")
	b.Write(data)
	b.WriteString("\n\n상품 종류는 예금, 적금, 대출이 있습니다.\n\n")
	b.WriteString("추천 조건:\n")
	b.WriteString("1. 사용자의 연봉과 자산 정보가 있을 경우:\n")
	b.WriteString("    - 해당 조건과 비슷한 재무 상황을 가진 사람이 선호할 만한 상품을 추천하세요.\n")
	b.WriteString("    - 기간에 맞는 상품 중 이자율이 높은 예·적금, 낮은 금리의 대출 상품을 우선 추천합니다.\n")
	b.WriteString("    - 또한 사용자의 자산을 이용하여 예·적금 상품 가입 시 얻을 수 있는 금액을 환산하여 주세요.\n\n")
	b.WriteString("2. 사용자의 연봉 및 자산 정보가 없는 경우:\n")
	b.WriteString("    - 예금/적금은 가장 높은 금리,\n")
	b.WriteString("    - 대출은 가장 낮은 금리 기준으로 추천하세요.\n\n")
	b.WriteString("출력 형식은 다음과 같이 해주세요:\n")
	b.WriteString("- [상품명] (상품유형) - 금리: X.X%, 기간: X개월\n")
	b.WriteString("- 추천 사유: [간단한 이유]\n")
	b.WriteString("- (환산 금액: X.X원)\n")
	return b.String(), nil
}

func won(v *int64) string {
	if v == nil {
		return "정보 없음"
	}
	return fmt.Sprintf("%d원", *v)
}
