package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/cache"
	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// imageNamespace prefixes asset cache keys of image payloads.
const imageNamespace = "img"

// ImageRepo stores image references. File contents are served by Data
// through the bounded asset cache and never kept on the Image itself.
type ImageRepo struct {
	repo[string, *world.Image]
	models repository.Repository[*imageRow]
}

func newImageRepo(s *Store) *ImageRepo {
	r := &ImageRepo{models: named(s.db, func() *imageRow { return &imageRow{} })}
	r.repo = newRepo[string, *world.Image](s, world.KindImage, imageTable, nameArgs, r.loadMany)
	return r
}

func (r *ImageRepo) Have(ctx context.Context, img *world.Image) (bool, error) {
	return r.Know(ctx, img.Name)
}

func validImage(img world.Image) error {
	return validation.ValidateStruct(&img,
		validation.Field(&img.Name, validation.Required),
		validation.Field(&img.Path, validation.Required),
	)
}

func (r *ImageRepo) Make(ctx context.Context, img world.Image, opts ...WriteOption) error {
	return r.MakeMany(ctx, []world.Image{img}, opts...)
}

func (r *ImageRepo) MakeMany(ctx context.Context, imgs []world.Image, opts ...WriteOption) error {
	rows := make([]*imageRow, len(imgs))
	for i, img := range imgs {
		if err := invalid(r.kind, img.Name, validImage(img)); err != nil {
			return err
		}
		rows[i] = &imageRow{Name: img.Name, Path: img.Path, RLTile: img.RLTile}
	}
	if len(rows) == 0 {
		return nil
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := r.models.CreateManyTx(ctx, db, rows); err != nil {
			return classify("insert", imageTable.Name, err)
		}
		for _, img := range imgs {
			r.cache.Invalidate(img.Name)
		}
		return nil
	})
}

func (r *ImageRepo) Update(ctx context.Context, img world.Image, opts ...WriteOption) error {
	if err := invalid(r.kind, img.Name, validImage(img)); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", imageTable.Name,
			"update img set path = ?, rltile = ? where name = ?", img.Path, img.RLTile, img.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, img.Name)
		}
		if have, ok := r.cache.Peek(img.Name); ok {
			have.Path, have.RLTile = img.Path, img.RLTile
		}
		return r.forget(ctx, img.Name)
	})
}

func (r *ImageRepo) Write(ctx context.Context, img world.Image, opts ...WriteOption) error {
	ok, err := r.Know(ctx, img.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, img, opts...)
	}
	return r.Make(ctx, img, opts...)
}

func (r *ImageRepo) Save(ctx context.Context, img *world.Image, opts ...WriteOption) error {
	return r.save(img.Name, img, func() error { return r.Write(ctx, *img, opts...) }, nil)
}

// Data returns the bytes of the image file. Relative paths resolve against
// the configured asset root.
func (r *ImageRepo) Data(ctx context.Context, name string) ([]byte, error) {
	img, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	path := img.Path
	if !filepath.IsAbs(path) && r.s.cfg.AssetRoot != "" {
		path = filepath.Join(r.s.cfg.AssetRoot, path)
	}
	key := r.s.keys.SerializeKey(imageNamespace, name, path)
	return cache.GetOrFetch(ctx, r.s.assets, key, func(ctx context.Context) ([]byte, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("store: read image %s: %w", name, err)
		}
		return b, nil
	})
}

// Delete removes the image. Boards and pawns showing it keep existing
// without one.
func (r *ImageRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.delete(ctx, db, name)
	})
}

// Cull deletes every image not named in keep.
func (r *ImageRepo) Cull(ctx context.Context, keep []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		var doomed []string
		if err := imageTable.Except(ctx, db, &doomed, gateway.Match{}, "name", gateway.Values(keep)); err != nil {
			return classify("cull", imageTable.Name, err)
		}
		r.s.logger.Debug("store: cull", "kind", r.kind.String(), "removed", len(doomed))
		for _, name := range doomed {
			if err := r.delete(ctx, db, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ImageRepo) delete(ctx context.Context, db bun.IDB, name string) error {
	s := r.s
	if _, err := s.exec(ctx, db, "update", boardTable.Name, "update board set wallpaper = null where wallpaper = ?", name); err != nil {
		return err
	}
	if _, err := s.exec(ctx, db, "update", pawnTable.Name, "update pawn set img = null where img = ?", name); err != nil {
		return err
	}
	ok, err := dropNamed(ctx, db, r.models, imageTable.Name, name)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(r.kind, name)
	}
	s.boards.cache.Range(func(_ string, b *world.Board) {
		if b.Wallpaper != nil && b.Wallpaper.Name == name {
			b.Wallpaper = nil
		}
	})
	s.pawns.cache.Range(func(_ world.PawnKey, p *world.Pawn) {
		if p.Image != nil && p.Image.Name == name {
			p.Image = nil
		}
	})
	r.cache.Invalidate(name)
	return r.forget(ctx, name)
}

// forget drops every cached payload of the image.
func (r *ImageRepo) forget(ctx context.Context, name string) error {
	prefix := r.s.keys.SerializeKey(imageNamespace, name) + cache.KeySeparator
	return r.s.assets.DeleteByPrefix(ctx, prefix)
}

func (r *ImageRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Image, error) {
	rows, err := listNamed(ctx, r.s, r.models, imageTable.Name, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*world.Image, len(rows))
	for _, row := range rows {
		out[row.Name] = &world.Image{Name: row.Name, Path: row.Path, RLTile: row.RLTile}
	}
	return out, nil
}
