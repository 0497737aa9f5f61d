package core

import "github.com/liangshengmoran/Nine-chat-backend/internal/domain"

// Rank orders roles from guest (0) to super (5). Every permission check in
// the engine goes through it.
func Rank(r domain.Role) int {
	switch r {
	case domain.RoleSuper:
		return 5
	case domain.RoleAdmin:
		return 4
	case domain.RoleOwner:
		return 3
	case domain.RoleModerator:
		return 2
	case domain.RoleUser, domain.RoleBot:
		return 1
	default:
		return 0
	}
}

func atLeast(r, min domain.Role) bool { return Rank(r) >= Rank(min) }

type ModeratorSet map[domain.UserID]struct{}

func NewModeratorSet(ids []domain.UserID) ModeratorSet {
	s := make(ModeratorSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ModeratorSet) Has(id domain.UserID) bool {
	_, ok := s[id]
	return ok
}

// EffectiveRole resolves the role applied to a user inside one room.
// Global super/admin win, then room owner, then moderator, then the global
// user/bot role; anything else is a guest.
func EffectiveRole(global domain.Role, userID, ownerID domain.UserID, mods ModeratorSet) domain.Role {
	switch global {
	case domain.RoleSuper, domain.RoleAdmin:
		return global
	}
	if userID == ownerID {
		return domain.RoleOwner
	}
	if mods.Has(userID) {
		return domain.RoleModerator
	}
	switch global {
	case domain.RoleUser, domain.RoleBot:
		return global
	}
	return domain.RoleGuest
}

func CanManageRoom(r domain.Role) bool { return atLeast(r, domain.RoleModerator) }

func CanChooseMusic(r domain.Role) bool { return atLeast(r, domain.RoleUser) }

// MusicCooldown returns seconds between two picks: 0 means unlimited, -1 forbidden.
func MusicCooldown(r domain.Role) int {
	if atLeast(r, domain.RoleModerator) {
		return 0
	}
	if r == domain.RoleUser || r == domain.RoleBot {
		return 8
	}
	return -1
}

func CanCutMusic(r domain.Role, actor, chooser domain.UserID) bool {
	return atLeast(r, domain.RoleOwner) || actor == chooser
}

func CanRemoveQueued(r domain.Role, actor, chooser domain.UserID) bool {
	return atLeast(r, domain.RoleModerator) || actor == chooser
}

// CanModerate gates kick and delete-message.
func CanModerate(r domain.Role) bool { return atLeast(r, domain.RoleModerator) }
