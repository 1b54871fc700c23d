package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"media-lite/internal/mediatypes"
)

// AllCategoryID is the built-in category every file implicitly belongs to.
const AllCategoryID int64 = 0

var (
	// ErrReservedName is returned when creating a category called "All".
	ErrReservedName = errors.New("category name 'All' is reserved")
	// ErrEmptyName is returned when creating a category with a blank name.
	ErrEmptyName = errors.New("category name cannot be empty")
	// ErrProtectedCategory is returned when deleting the "All" category.
	ErrProtectedCategory = errors.New("cannot delete 'All' category")
	// ErrCategoryNotFound is returned for an unknown category id.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrAssociationConflict is returned by a rename whose target filename is
	// already associated with a category.
	ErrAssociationConflict = errors.New("target filename already has a category association")
	// ErrUnsupportedKind is returned for kinds the catalog does not track.
	ErrUnsupportedKind = errors.New("media kind has no category associations")
)

// Category is a user-defined grouping of media files.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Association links one stored filename to one category.
type Association struct {
	Filename   string `db:"filename" json:"filename"`
	CategoryID int64  `db:"category_id" json:"category_id"`
}

func associationTable(kind mediatypes.Kind) (string, error) {
	switch kind {
	case mediatypes.KindVideo:
		return "video_categories", nil
	case mediatypes.KindImage:
		return "image_categories", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

// CreateCategory adds a category with id one above the current maximum.
func (d *Database) CreateCategory(ctx context.Context, name string) (*Category, error) {
	done := observeQuery("create_category")

	name = strings.TrimSpace(name)
	if name == "" {
		done(ErrEmptyName)
		return nil, ErrEmptyName
	}
	if strings.EqualFold(name, "all") {
		done(ErrReservedName)
		return nil, ErrReservedName
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cat := &Category{Name: name}
	err := d.wrapTx(ctx, func(tx *sqlx.Tx) error {
		var maxID int64
		if err := tx.GetContext(ctx, &maxID, "SELECT COALESCE(MAX(id), 0) FROM categories"); err != nil {
			return err
		}
		cat.ID = maxID + 1
		_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO categories (id, name) VALUES (?, ?)"), cat.ID, cat.Name)
		return err
	})
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return cat, nil
}

// DeleteCategory removes a category and every association pointing at it.
func (d *Database) DeleteCategory(ctx context.Context, id int64) error {
	done := observeQuery("delete_category")

	if id == AllCategoryID {
		done(ErrProtectedCategory)
		return ErrProtectedCategory
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := d.wrapTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"image_categories", "video_categories"} {
			q := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE category_id = ?", table))
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM categories WHERE id = ?"), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
	done(err)
	return err
}

// GetCategory returns one category by id.
func (d *Database) GetCategory(ctx context.Context, id int64) (*Category, error) {
	done := observeQuery("get_category")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var cat Category
	err := d.db.GetContext(ctx, &cat, d.db.Rebind("SELECT id, name FROM categories WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrCategoryNotFound
	}
	done(err)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListCategories returns all categories ordered by id, "All" first.
func (d *Database) ListCategories(ctx context.Context) ([]Category, error) {
	done := observeQuery("list_categories")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cats := []Category{}
	err := d.db.SelectContext(ctx, &cats, "SELECT id, name FROM categories ORDER BY id")
	done(err)
	return cats, err
}

// SetAssociation assigns filename to categoryID, replacing any previous
// assignment.
func (d *Database) SetAssociation(ctx context.Context, kind mediatypes.Kind, filename string, categoryID int64) error {
	done := observeQuery("set_association")

	table, err := associationTable(kind)
	if err != nil {
		done(err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q := fmt.Sprintf(`
		INSERT INTO %s (filename, category_id) VALUES (?, ?)
		ON CONFLICT (filename) DO UPDATE SET category_id = excluded.category_id`, table)
	_, err = d.db.ExecContext(ctx, d.db.Rebind(q), filename, categoryID)
	done(err)
	if err != nil {
		return fmt.Errorf("failed to associate %s with category %d: %w", filename, categoryID, err)
	}
	return nil
}

// GetAssociation returns the category of filename and whether one exists.
func (d *Database) GetAssociation(ctx context.Context, kind mediatypes.Kind, filename string) (int64, bool, error) {
	done := observeQuery("get_association")

	table, err := associationTable(kind)
	if err != nil {
		done(err)
		return 0, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var categoryID int64
	q := fmt.Sprintf("SELECT category_id FROM %s WHERE filename = ?", table)
	err = d.db.GetContext(ctx, &categoryID, d.db.Rebind(q), filename)
	if errors.Is(err, sql.ErrNoRows) {
		done(nil)
		return 0, false, nil
	}
	done(err)
	if err != nil {
		return 0, false, err
	}
	return categoryID, true, nil
}

// RemoveAssociation deletes the association of filename if it has one.
func (d *Database) RemoveAssociation(ctx context.Context, kind mediatypes.Kind, filename string) error {
	done := observeQuery("remove_association")

	table, err := associationTable(kind)
	if err != nil {
		done(err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, d.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE filename = ?", table)), filename)
	done(err)
	return err
}

// RenameAssociation moves the association of oldName to newName in one
// transaction. It reports whether a row moved; a missing oldName row is not an
// error. If newName is already associated it returns ErrAssociationConflict
// and changes nothing.
func (d *Database) RenameAssociation(ctx context.Context, kind mediatypes.Kind, oldName, newName string) (bool, error) {
	done := observeQuery("rename_association")

	table, err := associationTable(kind)
	if err != nil {
		done(err)
		return false, err
	}
	if oldName == newName {
		done(nil)
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	moved := false
	err = d.wrapTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		q := tx.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE filename = ?", table))
		if err := tx.GetContext(ctx, &n, q, oldName); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := tx.GetContext(ctx, &n, q, newName); err != nil {
			return err
		}
		if n > 0 {
			return ErrAssociationConflict
		}

		upd := tx.Rebind(fmt.Sprintf("UPDATE %s SET filename = ? WHERE filename = ?", table))
		if _, err := tx.ExecContext(ctx, upd, newName, oldName); err != nil {
			return err
		}
		moved = true
		return nil
	})
	done(err)
	if err != nil {
		return false, fmt.Errorf("rename %s -> %s: %w", oldName, newName, err)
	}
	return moved, nil
}

// ListAssociations returns every association of kind ordered by filename.
func (d *Database) ListAssociations(ctx context.Context, kind mediatypes.Kind) ([]Association, error) {
	done := observeQuery("list_associations")

	table, err := associationTable(kind)
	if err != nil {
		done(err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	assocs := []Association{}
	err = d.db.SelectContext(ctx, &assocs, fmt.Sprintf("SELECT filename, category_id FROM %s ORDER BY filename", table))
	done(err)
	return assocs, err
}

// FilenamesInCategory lists the files of kind assigned to categoryID.
// AllCategoryID returns every associated filename.
func (d *Database) FilenamesInCategory(ctx context.Context, kind mediatypes.Kind, categoryID int64) ([]string, error) {
	done := observeQuery("filenames_in_category")

	table, err := associationTable(kind)
	if err != nil {
		done(err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	names := []string{}
	if categoryID == AllCategoryID {
		err = d.db.SelectContext(ctx, &names, fmt.Sprintf("SELECT filename FROM %s ORDER BY filename", table))
	} else {
		q := d.db.Rebind(fmt.Sprintf("SELECT filename FROM %s WHERE category_id = ? ORDER BY filename", table))
		err = d.db.SelectContext(ctx, &names, q, categoryID)
	}
	done(err)
	return names, err
}

// KindCatalog is the association view for one media kind.
type KindCatalog struct {
	db   *Database
	kind mediatypes.Kind
}

// Catalog returns the association view for kind.
func (d *Database) Catalog(kind mediatypes.Kind) *KindCatalog {
	return &KindCatalog{db: d, kind: kind}
}

// Kind returns the media kind this view is bound to.
func (c *KindCatalog) Kind() mediatypes.Kind { return c.kind }

// Set assigns filename to categoryID.
func (c *KindCatalog) Set(ctx context.Context, filename string, categoryID int64) error {
	return c.db.SetAssociation(ctx, c.kind, filename, categoryID)
}

// Get returns the category of filename and whether one exists.
func (c *KindCatalog) Get(ctx context.Context, filename string) (int64, bool, error) {
	return c.db.GetAssociation(ctx, c.kind, filename)
}

// Remove deletes the association of filename.
func (c *KindCatalog) Remove(ctx context.Context, filename string) error {
	return c.db.RemoveAssociation(ctx, c.kind, filename)
}

// Rename moves the association of oldName to newName.
func (c *KindCatalog) Rename(ctx context.Context, oldName, newName string) (bool, error) {
	return c.db.RenameAssociation(ctx, c.kind, oldName, newName)
}

// Filenames lists every associated filename.
func (c *KindCatalog) Filenames(ctx context.Context) ([]string, error) {
	return c.db.FilenamesInCategory(ctx, c.kind, AllCategoryID)
}
