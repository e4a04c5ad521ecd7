package monitor

import (
	"context"
	"testing"

	"github.com/youthsafe/guardian/internal/models"
)

func TestAddChild_CreatesUserAndRelation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if err := db.Create(&models.User{UserID: 10, Username: "parent", Role: models.RoleParent}).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	child, err := svc.AddChild(ctx, 10, "kidone", 12)
	if err != nil {
		t.Fatalf("add child: %v", err)
	}
	if child.UserID == 0 {
		t.Fatalf("expected child user id to be set")
	}
	if child.Role != models.RoleChild {
		t.Fatalf("expected child role, got %q", child.Role)
	}

	var rel models.ParentChildRelation
	if err := db.First(&rel, "parent_user_id = ? AND child_user_id = ?", 10, child.UserID).Error; err != nil {
		t.Fatalf("relation missing: %v", err)
	}
}

func TestAddChild_RequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AddChild(context.Background(), 10, "", 12); err == nil {
		t.Fatalf("expected validation failure for empty name")
	}
}

func TestRemoveChild_DeletesRelationKeepsUser(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if err := db.Create(&models.User{UserID: 10, Username: "parent", Role: models.RoleParent}).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	child, err := svc.AddChild(ctx, 10, "kidone", 12)
	if err != nil {
		t.Fatalf("add child: %v", err)
	}

	if err := svc.RemoveChild(ctx, 10, child.UserID); err != nil {
		t.Fatalf("remove child: %v", err)
	}

	var relCnt int64
	if err := db.Model(&models.ParentChildRelation{}).
		Where("parent_user_id = ? AND child_user_id = ?", 10, child.UserID).
		Count(&relCnt).Error; err != nil {
		t.Fatalf("count relations: %v", err)
	}
	if relCnt != 0 {
		t.Fatalf("expected relation removed")
	}

	var user models.User
	if err := db.First(&user, "user_id = ?", child.UserID).Error; err != nil {
		t.Fatalf("user row must be retained: %v", err)
	}
}

func TestRenameChild_UpdatesUsernameOnly(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if err := db.Create(&models.User{UserID: 10, Username: "parent", Role: models.RoleParent}).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	child, err := svc.AddChild(ctx, 10, "kidone", 12)
	if err != nil {
		t.Fatalf("add child: %v", err)
	}

	if err := svc.RenameChild(ctx, child.UserID, "kid-renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	var user models.User
	if err := db.First(&user, "user_id = ?", child.UserID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if user.Username != "kid-renamed" {
		t.Fatalf("expected new name, got %q", user.Username)
	}
	if user.Role != models.RoleChild || user.UserAge != 12 {
		t.Fatalf("rename must not touch other fields: %+v", user)
	}
}

func TestListChildren_JoinsBothUserRows(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if err := db.Create(&models.User{UserID: 10, Username: "mom", Role: models.RoleParent}).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	child, err := svc.AddChild(ctx, 10, "kidone", 12)
	if err != nil {
		t.Fatalf("add child: %v", err)
	}

	rows, err := svc.ListChildren(ctx, 10)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.ParentUserID != 10 || row.ChildUserID != child.UserID {
		t.Fatalf("unexpected ids: %+v", row)
	}
	if row.ParentUsername != "mom" || row.Username != "kidone" || row.Role != models.RoleChild || row.UserAge != 12 {
		t.Fatalf("join fields mismatch: %+v", row)
	}
}
