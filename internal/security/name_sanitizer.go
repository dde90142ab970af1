package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名サニタイズ機能のインターフェースを定義する。
// ユーザーが入力した表示名をサニタイズし、保存データ経由のXSSなどの
// セキュリティリスクからクライアントを保護する。ユーザー作成時の保存前に使用される。
type NameSanitizerService interface {
	// Sanitize は表示名からHTMLタグをすべて除去し、前後の空白を削った文字列を返す。
	// タグ除去の結果が空になる入力には空文字列を返す（呼び出し側で必須チェックを行う）。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(name string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（全タグ除去）を使用する。表示名はプレーンテキストであり、
// マークアップを許可する理由がないため許可リストは空とする。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名からHTMLタグを除去する。
// bluemondayはタグ除去後にエンティティ参照へエスケープするため、
// 保存用プレーンテキストとしてアンエスケープしてから返す。
func (s *nameSanitizer) Sanitize(name string) string {
	cleaned := s.policy.Sanitize(name)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
