// Package user はプロフィール（ロール・BAN状態）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/cleardental/internal/metrics"
	"github.com/hitoshi/cleardental/internal/model"
	"github.com/hitoshi/cleardental/internal/repository"
)

// Service はプロフィール管理のサービス層。
type Service struct {
	profileRepo repository.ProfileRepository
	metrics     metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(profileRepo repository.ProfileRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		profileRepo: profileRepo,
		metrics:     collector,
	}
}

// Lookup はユーザーIDでプロフィールを検索し、結果区分付きで返す。
func (s *Service) Lookup(ctx context.Context, userID string) model.ProfileLookup {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return model.UpstreamFailure(err)
	}
	if p == nil {
		return model.NotFound()
	}
	return model.Found(p)
}

// GetOrCreateSelf はセッションのユーザーのプロフィールを返す。
// 存在しない場合は role=basic, banned=false で作成する。
// 同時に初回アクセスが来ても InsertIfAbsent により1行に収束する。
// エラー時のフォールバック方針は呼び出し側が決める。
func (s *Service) GetOrCreateSelf(ctx context.Context, session *model.Session) (*model.Profile, error) {
	if session == nil {
		return nil, model.NewUnauthenticatedError()
	}

	existing, err := s.profileRepo.FindByUserID(ctx, session.UserID)
	if err != nil {
		s.metrics.RecordProfileBootstrap("error")
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if existing != nil {
		s.metrics.RecordProfileBootstrap("found")
		return existing, nil
	}

	stored, created, err := s.profileRepo.InsertIfAbsent(ctx, model.NewDefaultProfile(session))
	if err != nil {
		s.metrics.RecordProfileBootstrap("error")
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	if created {
		s.metrics.RecordProfileBootstrap("created")
		slog.Info("profile created",
			slog.String("user_id", session.UserID),
		)
	} else {
		s.metrics.RecordProfileBootstrap("found")
	}
	return stored, nil
}

// authorizeAdmin は操作者が管理者として操作可能かを検証する。
// 検証順序: 未認証(401) → 取得失敗(500) → プロフィールなし(403) → BAN(403) → 非管理者(403)
func authorizeAdmin(actor *model.Session, actorProfile model.ProfileLookup, requireTarget func() error) error {
	if actor == nil {
		return model.NewUnauthenticatedError()
	}
	if requireTarget != nil {
		if err := requireTarget(); err != nil {
			return err
		}
	}
	switch actorProfile.Status {
	case model.LookupUpstreamError:
		return fmt.Errorf("操作者のプロフィール取得に失敗しました: %w", actorProfile.Err)
	case model.LookupNotFound:
		return model.NewProfileMissingError()
	}
	if actorProfile.Profile.Banned {
		return model.NewBannedError()
	}
	if !actorProfile.Profile.IsAdmin() {
		return model.NewAdminOnlyError("")
	}
	return nil
}

// ListAll は管理者に全プロフィールをcreated_at降順で返す。
func (s *Service) ListAll(ctx context.Context, actor *model.Session, actorProfile model.ProfileLookup) ([]*model.Profile, error) {
	if err := authorizeAdmin(actor, actorProfile, nil); err != nil {
		return nil, err
	}

	profiles, err := s.profileRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrProfileListUnavailable, err)
	}
	return profiles, nil
}

// Update は管理者が対象ユーザーのロール・BAN状態を部分更新する。
// 更新は対象ユーザーの1行のみに適用される。
func (s *Service) Update(
	ctx context.Context,
	actor *model.Session,
	actorProfile model.ProfileLookup,
	targetUserID string,
	patch model.ProfilePatch,
) (*model.Profile, error) {
	err := authorizeAdmin(actor, actorProfile, func() error {
		if targetUserID == "" {
			return model.NewBadRequestError("userId is required")
		}
		return nil
	})
	if err != nil {
		s.recordUpdate(err)
		return nil, err
	}

	if patch.Empty() {
		err := model.NewNothingToUpdateError()
		s.recordUpdate(err)
		return nil, err
	}
	if patch.Role != nil && !patch.Role.Valid() {
		err := model.NewInvalidRoleError(string(*patch.Role))
		s.recordUpdate(err)
		return nil, err
	}

	updated, err := s.profileRepo.Update(ctx, targetUserID, patch)
	if err != nil {
		err = fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
		s.recordUpdate(err)
		return nil, err
	}
	if updated == nil {
		err := model.NewProfileNotFoundError(targetUserID)
		s.recordUpdate(err)
		return nil, err
	}

	s.recordUpdate(nil)
	slog.Info("profile updated",
		slog.String("actor_id", actor.UserID),
		slog.String("target_user_id", targetUserID),
		slog.String("role", string(updated.Role)),
		slog.Bool("banned", updated.Banned),
	)
	return updated, nil
}

func (s *Service) recordUpdate(err error) {
	if err == nil {
		s.metrics.RecordProfileUpdate("ok")
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		s.metrics.RecordProfileUpdate(apiErr.Code)
		return
	}
	s.metrics.RecordProfileUpdate("error")
}
