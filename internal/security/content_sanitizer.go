// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザーが投稿したエントリのテキストをサニタイズし、
// 他のユーザー（管理者を含む）の画面でのXSSを防ぐ。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はエントリ保存前のサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeTitle はタイトルからすべてのHTMLを除去し、前後の空白を取り除く。
	SanitizeTitle(raw string) string

	// SanitizeDetails は本文を簡易書式のみ許可してサニタイズする。
	// 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em, a
	// aタグのhrefはhttpsのみで、target="_blank"とrel="noopener noreferrer"が付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeDetails(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type contentSanitizer struct {
	title   *bluemonday.Policy
	details *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	d := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	d.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	d.AllowAttrs("href").OnElements("a")
	d.AllowURLSchemes("https")
	d.AllowRelativeURLs(false)
	d.AddTargetBlankToFullyQualifiedLinks(true)
	d.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		title:   bluemonday.StrictPolicy(),
		details: d,
	}
}

// SanitizeTitle はタイトルをプレーンテキストにする。
func (s *contentSanitizer) SanitizeTitle(raw string) string {
	return strings.TrimSpace(s.title.Sanitize(raw))
}

// SanitizeDetails は本文をサニタイズする。
func (s *contentSanitizer) SanitizeDetails(raw string) string {
	return s.details.Sanitize(raw)
}
