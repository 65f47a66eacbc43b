package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

const maxGroupNameLength = 100

// MembershipNotifier is told about membership changes so live connections
// can be re-subscribed without reconnecting.
type MembershipNotifier interface {
	MemberAdded(ctx context.Context, g *domain.Group, userID string)
	GroupDeleted(ctx context.Context, g *domain.Group)
}

type GroupService struct {
	groups   domain.GroupRepository
	users    domain.UserRepository
	notifier MembershipNotifier
}

func NewGroupService(groups domain.GroupRepository, users domain.UserRepository) *GroupService {
	return &GroupService{groups: groups, users: users}
}

// SetNotifier installs the membership listener. Must be called before the
// service is shared between goroutines.
func (s *GroupService) SetNotifier(n MembershipNotifier) {
	s.notifier = n
}

// Create makes a group whose first member is creatorID. Additional members
// must be existing users.
func (s *GroupService) Create(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("group name is required")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLength {
		return nil, domain.Invalid("group name exceeds %d characters", maxGroupNameLength)
	}

	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	known, err := s.users.GetMany(ctx, members)
	if err != nil {
		return nil, domain.StoreFailure("load members", err)
	}
	for _, id := range members {
		if _, ok := known[id]; !ok {
			return nil, domain.Invalid("unknown user %q", id)
		}
	}

	g := &domain.Group{Name: name, Members: members}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, domain.StoreFailure("create group", err)
	}
	if s.notifier != nil {
		for _, id := range members {
			s.notifier.MemberAdded(ctx, g, id)
		}
	}
	return g, nil
}

// AddMember adds userID to the group. Only current members may add, and
// adding an existing member is a conflict.
func (s *GroupService) AddMember(ctx context.Context, groupID, actorID, userID string) (*domain.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, domain.StoreFailure("get group", err)
	}
	if !g.HasMember(actorID) {
		return nil, domain.Forbidden("only members can add to a group")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, domain.StoreFailure("get user", err)
	}
	added, err := s.groups.AddMember(ctx, groupID, userID)
	if err != nil {
		return nil, domain.StoreFailure("add member", err)
	}
	if !added {
		return nil, domain.ErrConflict
	}
	g.Members = append(g.Members, userID)
	if s.notifier != nil {
		s.notifier.MemberAdded(ctx, g, userID)
	}
	return g, nil
}

// Delete removes a group. Its messages are kept.
func (s *GroupService) Delete(ctx context.Context, groupID, actorID string) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return domain.StoreFailure("get group", err)
	}
	if !g.HasMember(actorID) {
		return domain.Forbidden("only members can delete a group")
	}
	if err := s.groups.Delete(ctx, groupID); err != nil {
		return domain.StoreFailure("delete group", err)
	}
	if s.notifier != nil {
		s.notifier.GroupDeleted(ctx, g)
	}
	return nil
}

func (s *GroupService) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, domain.StoreFailure("get group", err)
	}
	return g, nil
}

func (s *GroupService) ListForUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	groups, err := s.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.StoreFailure("list groups", err)
	}
	return nonNil(groups), nil
}

func (s *GroupService) ListAll(ctx context.Context) ([]*domain.Group, error) {
	groups, err := s.groups.ListAll(ctx)
	if err != nil {
		return nil, domain.StoreFailure("list groups", err)
	}
	return nonNil(groups), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
