package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// PluginResolver resolves a plugin and its required dependencies against
// the catalog.
type PluginResolver struct {
	catalog ports.PluginCatalog
	logger  *slog.Logger
}

var _ ports.PluginResolver = (*PluginResolver)(nil)

// NewPluginResolver creates a resolver over catalog.
func NewPluginResolver(catalog ports.PluginCatalog, logger *slog.Logger) *PluginResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PluginResolver{catalog: catalog, logger: logger}
}

// Resolve returns the requested plugin followed by every required
// transitive dependency, in discovery order.
//
// Each pass walks the dependency graph from the root. When a later
// requirement narrows a slug away from the version already chosen for it,
// the narrowed constraint is remembered and the pass starts over, so the
// result only holds what the final selections require.
func (r *PluginResolver) Resolve(ctx context.Context, req ports.PluginRequest) ([]domain.PluginDescriptor, error) {
	if len(req.Loaders) == 0 {
		return nil, domain.NewError(domain.ErrIncompatible, "resolve plugin", req.Slug, fmt.Errorf("server has no plugin loader"))
	}

	res := &resolution{
		resolver: r,
		req:      req,
		versions: make(map[string][]domain.PluginDescriptor),
		keys:     make(map[string]string),
		narrowed: make(map[string]domain.Constraint),
	}
	for pass := 1; ; pass++ {
		res.reset()
		err := res.visit(ctx, req.Slug, req.Constraint, "")
		if errors.Is(err, errNarrowed) {
			r.logger.Debug("restarting plugin resolution", "slug", req.Slug, "pass", pass)
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	out := make([]domain.PluginDescriptor, 0, len(res.order))
	for _, key := range res.order {
		out = append(out, res.selected[key].descriptor)
	}
	return out, nil
}

// errNarrowed ends a pass whose selections must be recomputed.
var errNarrowed = errors.New("plugin selection narrowed")

// selection is the working-set entry for one project: the chosen
// descriptor and the conjunction of every constraint placed on it so far.
type selection struct {
	descriptor domain.PluginDescriptor
	constraint domain.Constraint
	requiredBy string
}

// resolution is the state of one Resolve call. The working set is keyed
// by catalog project id, so a project referenced by slug and by id is one
// entry. versions, keys and narrowed survive restarts; the rest is per pass.
type resolution struct {
	resolver *PluginResolver
	req      ports.PluginRequest
	versions map[string][]domain.PluginDescriptor
	keys     map[string]string
	narrowed map[string]domain.Constraint

	selected map[string]*selection
	order    []string
}

func (res *resolution) reset() {
	res.selected = make(map[string]*selection)
	res.order = nil
}

func (res *resolution) visit(ctx context.Context, ref string, constraint domain.Constraint, requiredBy string) error {
	key, err := res.key(ctx, ref)
	if err != nil {
		return err
	}
	if existing, ok := res.selected[key]; ok {
		return res.revisit(ctx, key, existing, constraint, requiredBy)
	}

	if learned, ok := res.narrowed[key]; ok {
		constraint = constraint.Intersect(learned)
	}
	chosen, err := res.pick(ctx, key, constraint, requiredBy)
	if err != nil {
		return err
	}
	res.selected[key] = &selection{descriptor: chosen, constraint: constraint, requiredBy: requiredBy}
	res.order = append(res.order, key)
	res.resolver.logger.Debug("selected plugin version", "slug", chosen.Slug, "version", chosen.VersionNumber, "required_by", requiredBy)

	return res.descend(ctx, chosen)
}

// revisit merges a further constraint into an existing selection. The
// selection stands if it satisfies both. Otherwise, if some version
// satisfies both, the merged constraint is kept for the next pass;
// if none does, the constraints are in conflict.
func (res *resolution) revisit(ctx context.Context, key string, existing *selection, constraint domain.Constraint, requiredBy string) error {
	merged := existing.constraint.Intersect(constraint)
	if merged.Allows(existing.descriptor.VersionNumber, existing.descriptor.VersionID) {
		existing.constraint = merged
		return nil
	}

	candidates, err := res.compatibleVersions(ctx, key)
	if err != nil {
		return err
	}
	replacement, ok := newestAllowed(candidates, merged)
	if !ok {
		return domain.NewError(domain.ErrDependencyConflict, "resolve plugin", existing.descriptor.Slug,
			fmt.Errorf("%s requires %q but %s requires %q", describe(existing.requiredBy), existing.constraint, describe(requiredBy), constraint))
	}

	res.narrowed[key] = merged
	res.resolver.logger.Debug("narrowed plugin selection", "slug", existing.descriptor.Slug,
		"from", existing.descriptor.VersionNumber, "to", replacement.VersionNumber, "constraint", merged.String())
	return errNarrowed
}

// descend visits the required dependencies of a new selection. A cycle
// back to a selected project lands in revisit and stops there.
func (res *resolution) descend(ctx context.Context, chosen domain.PluginDescriptor) error {
	for _, dep := range chosen.RequiredDependencies() {
		if err := res.visit(ctx, dep.Slug, dep.VersionConstraint, chosen.Slug); err != nil {
			return err
		}
	}
	return nil
}

// key maps a slug or project id to the working-set key of its project.
// The catalog is asked once per reference.
func (res *resolution) key(ctx context.Context, ref string) (string, error) {
	if key, ok := res.keys[ref]; ok {
		return key, nil
	}
	versions, err := res.resolver.catalog.Versions(ctx, ref)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", domain.NotFoundError("resolve plugin", ref, fmt.Errorf("project has no downloadable versions"))
	}
	key := ref
	if id := versions[0].ProjectID; id != "" {
		key = id
	}
	res.keys[ref] = key
	// the first reference names the project in the result
	if _, ok := res.versions[key]; !ok {
		res.versions[key] = versions
	}
	return key, nil
}

// pick selects the newest version of a project that is compatible with
// the server and satisfies constraint.
func (res *resolution) pick(ctx context.Context, key string, constraint domain.Constraint, requiredBy string) (domain.PluginDescriptor, error) {
	all, err := res.allVersions(ctx, key)
	if err != nil {
		return domain.PluginDescriptor{}, err
	}
	slug := res.name(key)

	var matching []domain.PluginDescriptor
	for _, d := range all {
		if constraint.Allows(d.VersionNumber, d.VersionID) {
			matching = append(matching, d)
		}
	}
	if len(matching) == 0 {
		return domain.PluginDescriptor{}, domain.NotFoundError("resolve plugin", slug,
			fmt.Errorf("no published version matches %q (%s)", constraint, describe(requiredBy)))
	}

	compatible := res.filterCompatible(matching)
	chosen, ok := newestAllowed(compatible, constraint)
	if !ok {
		return domain.PluginDescriptor{}, domain.NewError(domain.ErrIncompatible, "resolve plugin", slug,
			fmt.Errorf("no version matching %q supports Minecraft %s with loaders %s (%s)",
				constraint, res.req.GameVersion, strings.Join(res.req.Loaders, ","), describe(requiredBy)))
	}
	return chosen, nil
}

// name is the slug the project was first referenced by.
func (res *resolution) name(key string) string {
	if versions := res.versions[key]; len(versions) > 0 && versions[0].Slug != "" {
		return versions[0].Slug
	}
	return key
}

func (res *resolution) allVersions(ctx context.Context, key string) ([]domain.PluginDescriptor, error) {
	if cached, ok := res.versions[key]; ok {
		return cached, nil
	}
	if _, err := res.key(ctx, key); err != nil {
		return nil, err
	}
	return res.versions[key], nil
}

func (res *resolution) compatibleVersions(ctx context.Context, key string) ([]domain.PluginDescriptor, error) {
	all, err := res.allVersions(ctx, key)
	if err != nil {
		return nil, err
	}
	return res.filterCompatible(all), nil
}

func (res *resolution) filterCompatible(versions []domain.PluginDescriptor) []domain.PluginDescriptor {
	var out []domain.PluginDescriptor
	for _, d := range versions {
		if d.CompatibleWith(res.req.GameVersion, res.req.Loaders) {
			out = append(out, d)
		}
	}
	return out
}

func newestAllowed(candidates []domain.PluginDescriptor, constraint domain.Constraint) (domain.PluginDescriptor, bool) {
	var best domain.PluginDescriptor
	found := false
	for _, d := range candidates {
		if !constraint.Allows(d.VersionNumber, d.VersionID) {
			continue
		}
		if !found || d.NewerThan(best) {
			best, found = d, true
		}
	}
	return best, found
}

func describe(requiredBy string) string {
	if requiredBy == "" {
		return "the request"
	}
	return requiredBy
}
