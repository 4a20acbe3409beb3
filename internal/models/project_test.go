package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestProjectHasMember(t *testing.T) {
	owner := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	member := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	stranger := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	p := &Project{OwnerID: owner, Members: []uuid.UUID{member}}

	if !p.HasMember(owner) {
		t.Fatal("owner should have implicit access")
	}
	if !p.HasMember(member) {
		t.Fatal("collaborator should have access")
	}
	if p.HasMember(stranger) {
		t.Fatal("stranger should not have access")
	}
}
