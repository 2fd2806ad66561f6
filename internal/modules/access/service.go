package access

import (
	"context"
	"fmt"

	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/rs/zerolog"
)

const module = "access"

// Roles lists the current holders of each role
type Roles struct {
	Governors []domain.Address `json:"governors"`
	Guardians []domain.Address `json:"guardians"`
}

// Registry answers role queries and manages role grants.
// Grants and revocations are Governor-only.
type Registry struct {
	repo   *Repository
	rt     *database.Runtime
	events *events.Manager
	log    zerolog.Logger
}

// NewRegistry creates a new access registry
func NewRegistry(repo *Repository, rt *database.Runtime, eventManager *events.Manager, log zerolog.Logger) *Registry {
	return &Registry{
		repo:   repo,
		rt:     rt,
		events: eventManager,
		log:    log.With().Str("service", "access").Logger(),
	}
}

// IsGovernor reports whether addr holds the Governor role
func (r *Registry) IsGovernor(ctx context.Context, addr domain.Address) (bool, error) {
	return r.repo.HasRole(ctx, addr, domain.RoleGovernor)
}

// IsGuardian reports whether addr holds the Guardian role
func (r *Registry) IsGuardian(ctx context.Context, addr domain.Address) (bool, error) {
	return r.repo.HasRole(ctx, addr, domain.RoleGuardian)
}

// RequireGovernor fails with ErrUnauthorized unless caller is a governor
func (r *Registry) RequireGovernor(ctx context.Context, caller domain.Address) error {
	ok, err := r.IsGovernor(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a governor: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

// Roles returns the holders of every role
func (r *Registry) Roles(ctx context.Context) (*Roles, error) {
	governors, err := r.repo.List(ctx, domain.RoleGovernor)
	if err != nil {
		return nil, err
	}
	guardians, err := r.repo.List(ctx, domain.RoleGuardian)
	if err != nil {
		return nil, err
	}
	return &Roles{Governors: governors, Guardians: guardians}, nil
}

// GrantGovernor gives addr the Governor role
func (r *Registry) GrantGovernor(ctx context.Context, caller, addr domain.Address) (*events.Receipt, error) {
	return r.grant(ctx, caller, addr, domain.RoleGovernor)
}

// GrantGuardian gives addr the Guardian role
func (r *Registry) GrantGuardian(ctx context.Context, caller, addr domain.Address) (*events.Receipt, error) {
	return r.grant(ctx, caller, addr, domain.RoleGuardian)
}

// RevokeGovernor removes the Governor role from addr. The last governor cannot be revoked.
func (r *Registry) RevokeGovernor(ctx context.Context, caller, addr domain.Address) (*events.Receipt, error) {
	return r.revoke(ctx, caller, addr, domain.RoleGovernor)
}

// RevokeGuardian removes the Guardian role from addr
func (r *Registry) RevokeGuardian(ctx context.Context, caller, addr domain.Address) (*events.Receipt, error) {
	return r.revoke(ctx, caller, addr, domain.RoleGuardian)
}

// Bootstrap seeds the configured role holders at start-up. Addresses that
// already hold their role are left untouched.
func (r *Registry) Bootstrap(ctx context.Context, governors, guardians []domain.Address) error {
	_, err := events.Execute(ctx, r.rt, func(ctx context.Context) error {
		for _, addr := range governors {
			if err := r.assign(ctx, "", addr, domain.RoleGovernor); err != nil {
				return err
			}
		}
		for _, addr := range guardians {
			if err := r.assign(ctx, "", addr, domain.RoleGuardian); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap roles: %w", err)
	}
	return nil
}

func (r *Registry) grant(ctx context.Context, caller, addr domain.Address, role domain.Role) (*events.Receipt, error) {
	if addr.IsZero() {
		return nil, fmt.Errorf("cannot grant %s: %w", role, domain.ErrInvalidAddress)
	}

	return events.Execute(ctx, r.rt, func(ctx context.Context) error {
		if err := r.RequireGovernor(ctx, caller); err != nil {
			return err
		}
		return r.assign(ctx, caller, addr, role)
	})
}

func (r *Registry) assign(ctx context.Context, caller, addr domain.Address, role domain.Role) error {
	granted, err := r.repo.Grant(ctx, addr, role)
	if err != nil {
		return err
	}
	if !granted {
		return nil
	}

	r.log.Info().Str("address", addr.String()).Str("role", string(role)).Msg("Role granted")
	return r.events.Emit(ctx, module, &events.RoleGrantedData{Address: addr, Role: role, By: caller})
}

func (r *Registry) revoke(ctx context.Context, caller, addr domain.Address, role domain.Role) (*events.Receipt, error) {
	return events.Execute(ctx, r.rt, func(ctx context.Context) error {
		if err := r.RequireGovernor(ctx, caller); err != nil {
			return err
		}

		if role == domain.RoleGovernor {
			held, err := r.repo.HasRole(ctx, addr, role)
			if err != nil {
				return err
			}
			count, err := r.repo.Count(ctx, role)
			if err != nil {
				return err
			}
			if held && count <= 1 {
				return domain.ErrLastGovernor
			}
		}

		revoked, err := r.repo.Revoke(ctx, addr, role)
		if err != nil {
			return err
		}
		if !revoked {
			return nil
		}

		r.log.Info().Str("address", addr.String()).Str("role", string(role)).Msg("Role revoked")
		return r.events.Emit(ctx, module, &events.RoleRevokedData{Address: addr, Role: role, By: caller})
	})
}
