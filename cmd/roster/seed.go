package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"roster/internal/core"
	"roster/internal/squad"
	"roster/pkg/domain"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Soldiers []seedSoldier `yaml:"soldiers"`
	Squads   []seedSquad   `yaml:"squads,omitempty"`
}

type seedSoldier struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
	Rank string `yaml:"rank,omitempty"`
	// Info is the home address of a standard soldier or an engineer's specialization.
	Info string `yaml:"info,omitempty"`
}

type seedSquad struct {
	Name    string   `yaml:"name"`
	Leader  string   `yaml:"leader"`
	Members []string `yaml:"members,omitempty"`
}

func loadSeed(path string) (seedFile, error) {
	var seed seedFile
	b, err := os.ReadFile(path)
	if err != nil {
		return seed, domain.WrapError(domain.CodeIO, err, "read seed %s", path)
	}
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return seed, domain.WrapError(domain.CodeParse, err, "seed %s", path)
	}
	return seed, nil
}

func (s seedSoldier) options() ([]domain.Option, error) {
	var opts []domain.Option
	if s.Rank != "" {
		rank, err := domain.ParseRank(s.Rank)
		if err != nil {
			return nil, err
		}
		opts = append(opts, domain.WithRank(rank))
	}
	if s.Info != "" {
		opts = append(opts, domain.WithExtendedInfo(s.Info))
	}
	return opts, nil
}

// applySeed enlists every seeded soldier and builds the squads. Soldier names
// must be unique within a seed so squads can refer to them.
func applySeed(ctx context.Context, svc *core.Service, seed seedFile) ([]*squad.Squad, error) {
	byName := make(map[string]domain.Key, len(seed.Soldiers))
	for _, s := range seed.Soldiers {
		if _, dup := byName[s.Name]; dup {
			return nil, domain.NewError(domain.CodeValidation, "duplicate soldier %q in seed", s.Name)
		}
		variant := domain.VariantStandard
		if s.Type != "" {
			variant = domain.Variant(strings.ToLower(s.Type))
		}
		opts, err := s.options()
		if err != nil {
			return nil, fmt.Errorf("soldier %q: %w", s.Name, err)
		}
		k, err := svc.Enlist(ctx, variant, s.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("soldier %q: %w", s.Name, err)
		}
		byName[s.Name] = k
	}

	squads := make([]*squad.Squad, 0, len(seed.Squads))
	for _, spec := range seed.Squads {
		leader, ok := byName[spec.Leader]
		if !ok {
			return nil, domain.NewError(domain.CodeValidation, "squad %q: unknown leader %q", spec.Name, spec.Leader)
		}
		sq := squad.New(spec.Name, leader)
		for _, m := range spec.Members {
			k, ok := byName[m]
			if !ok {
				return nil, domain.NewError(domain.CodeValidation, "squad %q: unknown member %q", spec.Name, m)
			}
			sq.AddMember(k)
		}
		squads = append(squads, sq)
	}
	return squads, nil
}

func seedCmd(ctx context.Context, svc *core.Service, path string, out io.Writer) error {
	seed, err := loadSeed(path)
	if err != nil {
		return err
	}
	squads, err := applySeed(ctx, svc, seed)
	if err != nil {
		return err
	}
	if err := svc.Persist(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d soldiers\n", svc.Len())
	for _, sq := range squads {
		fmt.Fprintln(out, sq)
		if err := svc.View(func(ext *core.Extent) error {
			res := sq.Resolve(ext)
			if res.LeaderOK {
				fmt.Fprintf(out, "  leader  %s (%s)\n", res.Leader.Name(), res.Leader.Rank())
			}
			for _, m := range res.Members {
				fmt.Fprintf(out, "  member  %s (%s)\n", m.Name(), m.Rank())
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return showCmd(ctx, svc, out)
}
