// Package entry はエントリの一覧・作成と、許可リスト経由の汎用取得を提供する。
//
// 一覧は呼び出し元のロールに応じて rowscope.Scope で絞り込み、
// 同じ呼び出し元情報をDBの行レベルセキュリティにも渡す。
package entry

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/cleardental/internal/model"
	"github.com/hitoshi/cleardental/internal/repository"
	"github.com/hitoshi/cleardental/internal/rowscope"
	"github.com/hitoshi/cleardental/internal/security"
)

// MaxTitleLength はタイトルの最大文字数（entries.title VARCHAR(255)）。
const MaxTitleLength = 255

// Service はエントリのサービス層。
type Service struct {
	entryRepo repository.EntryRepository
	rowReader repository.RowReader
	registry  *rowscope.Registry
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
// registryがnilの場合は rowscope.DefaultRegistry を使う。
func NewService(
	entryRepo repository.EntryRepository,
	rowReader repository.RowReader,
	registry *rowscope.Registry,
	sanitizer security.ContentSanitizerService,
) *Service {
	if registry == nil {
		registry = rowscope.DefaultRegistry()
	}
	return &Service{
		entryRepo: entryRepo,
		rowReader: rowReader,
		registry:  registry,
		sanitizer: sanitizer,
	}
}

// resolveCaller はセッションとプロフィール検索結果から呼び出し元を決める。
// プロフィール未作成のユーザーはbasicとして扱う。BAN済みの場合は403を返す。
func resolveCaller(session *model.Session, lookup model.ProfileLookup) (repository.Caller, *model.Profile, error) {
	if session == nil {
		return repository.Caller{}, nil, model.NewUnauthenticatedError()
	}

	var p *model.Profile
	switch lookup.Status {
	case model.LookupUpstreamError:
		return repository.Caller{}, nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", lookup.Err)
	case model.LookupNotFound:
		p = model.NewDefaultProfile(session)
	default:
		p = lookup.Profile
	}

	if p.Banned {
		return repository.Caller{}, nil, model.NewBannedError()
	}

	return repository.Caller{UserID: session.UserID, Role: p.Role}, p, nil
}

// List は呼び出し元が参照できるエントリをcreated_at降順で返す。
// 管理者は全件、それ以外は自分のエントリのみ。
func (s *Service) List(ctx context.Context, session *model.Session, lookup model.ProfileLookup) ([]*model.Entry, error) {
	caller, p, err := resolveCaller(session, lookup)
	if err != nil {
		return nil, err
	}

	q := rowscope.Scope(rowscope.From("entries"), caller.UserID, p.IsAdmin())
	entries, err := s.entryRepo.List(ctx, caller, q)
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}
	return entries, nil
}

// CreateInput はエントリ作成の入力。
type CreateInput struct {
	Title   string
	Details string
}

// Create は呼び出し元を所有者としてエントリを作成する。
// 入力に所有者を指定する手段はなく、常にセッションのユーザーIDが使われる。
func (s *Service) Create(ctx context.Context, session *model.Session, lookup model.ProfileLookup, in CreateInput) (*model.Entry, error) {
	caller, _, err := resolveCaller(session, lookup)
	if err != nil {
		return nil, err
	}

	title := s.sanitizer.SanitizeTitle(in.Title)
	if title == "" {
		return nil, model.NewBadRequestError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.NewBadRequestError(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	e := &model.Entry{
		ID:      uuid.New().String(),
		Title:   title,
		Details: strings.TrimSpace(s.sanitizer.SanitizeDetails(in.Details)),
		UserID:  caller.UserID,
	}

	if err := s.entryRepo.Create(ctx, caller, e); err != nil {
		return nil, fmt.Errorf("エントリの作成に失敗しました: %w", err)
	}
	return e, nil
}

// FetchTable は許可リストに登録された論理リソースを呼び出し元のロールで絞り込んで返す。
// 未登録の名前は物理テーブルに到達する前に400で拒否する。
func (s *Service) FetchTable(ctx context.Context, session *model.Session, lookup model.ProfileLookup, name string) ([]map[string]any, error) {
	if session == nil {
		return nil, model.NewUnauthenticatedError()
	}
	if name == "" {
		return nil, model.NewBadRequestError("Table name is required")
	}
	res, ok := s.registry.Lookup(name)
	if !ok {
		return nil, model.NewUnknownResourceError(name)
	}

	caller, p, err := resolveCaller(session, lookup)
	if err != nil {
		return nil, err
	}
	if !res.Permits(p) {
		return nil, model.NewAdminOnlyError(fmt.Sprintf("Admin only: %s", name))
	}

	q := rowscope.Scope(res.Query(), caller.UserID, p.IsAdmin())
	rows, err := s.rowReader.SelectRows(ctx, caller, q)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", name, err)
	}
	return rows, nil
}
