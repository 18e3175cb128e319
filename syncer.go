package urconf

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// ActionCounts tallies the actions computed for one resource kind during a
// sync. In dry-run mode the counts reflect what would have been applied.
type ActionCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// SyncResult summarises a single sync run.
type SyncResult struct {
	DryRun   bool         `json:"dry_run"`
	Contacts ActionCounts `json:"contacts"`
	Monitors ActionCounts `json:"monitors"`
}

// Mutations returns the total number of create/update/delete actions across
// both resource kinds.
func (r *SyncResult) Mutations() int {
	return r.Contacts.Created + r.Contacts.Updated + r.Contacts.Deleted +
		r.Monitors.Created + r.Monitors.Updated + r.Monitors.Deleted
}

// entity is the contract both Contact and Monitor satisfy for the
// reconciler. The server id is excluded from equal; typeCode is the
// immutable discriminator the API refuses to change in place.
type entity[E any] interface {
	Identity() string
	ServerID() string
	setServerID(string)
	typeCode() int
	equal(E) bool
	createParams() url.Values
	updateParams() url.Values
}

// reconcile brings the remote state for one resource kind in line with the
// desired set:
//
//  1. Fetch all existing records and build an entity per record.
//  2. Existing entities whose identity is not desired are deleted. Matched
//     entities hand their server id to the desired entity; if the fields
//     differ the desired entity is pushed as an update, unless the type
//     differs, in which case the old entity is deleted and the desired one
//     created (the API cannot change type in place).
//  3. Desired entities not seen on the server are created, in declaration
//     order, and receive the server-assigned id.
//
// In dry-run mode every mutation is logged and skipped; the fetch still
// runs. Entities created in dry-run keep an empty server id.
func reconcile[E entity[E]](
	ctx context.Context,
	u *UptimeRobot,
	res resourceKind,
	desired map[string]E,
	order []string,
	parse func(record) (E, error),
	extra url.Values,
	counts *ActionCounts,
) error {
	records, err := u.api.listAll(ctx, res, extra)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(desired))
	for _, rec := range records {
		existing, err := parse(rec)
		if err != nil {
			return err
		}
		name := existing.Identity()

		want, ok := desired[name]
		if !ok {
			if err := u.applyDelete(ctx, res, name, existing.ServerID()); err != nil {
				return err
			}
			counts.Deleted++
			continue
		}
		seen[name] = true

		// The server id is needed downstream (monitor association strings
		// embed contact ids) whether or not an update happens.
		want.setServerID(existing.ServerID())

		if existing.equal(want) {
			counts.Unchanged++
			continue
		}

		if existing.typeCode() != want.typeCode() {
			u.logger.Info("type changes are not possible in place, will delete and recreate",
				zap.String("kind", res.name),
				zap.String("name", name),
			)
			if err := u.applyDelete(ctx, res, name, existing.ServerID()); err != nil {
				return err
			}
			counts.Deleted++
			id, err := u.applyCreate(ctx, res, name, want.createParams())
			if err != nil {
				return err
			}
			counts.Created++
			if id != "" {
				want.setServerID(id)
			}
			continue
		}

		if err := u.applyUpdate(ctx, res, name, existing.ServerID(), want.updateParams()); err != nil {
			return err
		}
		counts.Updated++
	}

	for _, name := range order {
		if seen[name] {
			continue
		}
		want := desired[name]
		id, err := u.applyCreate(ctx, res, name, want.createParams())
		if err != nil {
			return err
		}
		counts.Created++
		if id != "" {
			want.setServerID(id)
		}
	}

	return nil
}

func (u *UptimeRobot) applyCreate(ctx context.Context, res resourceKind, name string, params url.Values) (string, error) {
	if u.dryRun {
		u.logger.Info("dry-run: would create "+res.name, zap.String("name", name))
		return "", nil
	}
	u.logger.Info("creating "+res.name, zap.String("name", name))
	id, err := u.api.create(ctx, res, params)
	if err != nil {
		return "", err
	}
	actionsTotal.WithLabelValues(res.name, "create").Inc()
	return id, nil
}

func (u *UptimeRobot) applyUpdate(ctx context.Context, res resourceKind, name, id string, params url.Values) error {
	if u.dryRun {
		u.logger.Info("dry-run: would update "+res.name, zap.String("name", name), zap.String("id", id))
		return nil
	}
	u.logger.Info("updating "+res.name, zap.String("name", name), zap.String("id", id))
	if err := u.api.update(ctx, res, id, params); err != nil {
		return err
	}
	actionsTotal.WithLabelValues(res.name, "update").Inc()
	return nil
}

func (u *UptimeRobot) applyDelete(ctx context.Context, res resourceKind, name, id string) error {
	if u.dryRun {
		u.logger.Info("dry-run: would delete "+res.name, zap.String("name", name), zap.String("id", id))
		return nil
	}
	u.logger.Info("deleting "+res.name, zap.String("name", name), zap.String("id", id))
	if err := u.api.delete(ctx, res, id); err != nil {
		return err
	}
	actionsTotal.WithLabelValues(res.name, "delete").Inc()
	return nil
}
