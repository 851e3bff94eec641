package labs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

func TestNewCatalogCoversAllLabs(t *testing.T) {
	catalog := NewCatalog()
	for _, id := range models.AllLabIDs {
		if _, ok := catalog.Lab(id); !ok {
			t.Errorf("catalog missing lab %s", id)
		}
	}
	if len(catalog.All()) != len(models.AllLabIDs) {
		t.Errorf("expected %d labs, got %d", len(models.AllLabIDs), len(catalog.All()))
	}
}

func TestCatalogOrderedByPriority(t *testing.T) {
	catalog := NewCatalog()
	all := catalog.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Priority > all[i].Priority {
			t.Fatalf("catalog not ordered: %s (%d) before %s (%d)",
				all[i-1].ID, all[i-1].Priority, all[i].ID, all[i].Priority)
		}
	}
	if all[0].ID != models.LabAudience {
		t.Errorf("expected audience lab first, got %s", all[0].ID)
	}
}

func TestCatalogFieldOwner(t *testing.T) {
	catalog := NewCatalog()

	owner, ok := catalog.FieldOwner("brand.positioning")
	if !ok || owner != models.LabBrand {
		t.Errorf("expected brand lab to own brand.positioning, got %s (%v)", owner, ok)
	}
	owner, ok = catalog.FieldOwner("competitive.competitors")
	if !ok || owner != models.LabCompetitor {
		t.Errorf("expected competitor lab to own competitive.competitors, got %s (%v)", owner, ok)
	}
	if _, ok := catalog.FieldOwner("brand.noSuchField"); ok {
		t.Error("expected no owner for unknown field")
	}
}

func TestCatalogLabName(t *testing.T) {
	catalog := NewCatalog()
	if name := catalog.LabName(models.LabSEO); name != "SEO Lab" {
		t.Errorf("unexpected name %q", name)
	}
	if name := catalog.LabName(models.LabID("mystery")); name != "mystery" {
		t.Errorf("expected id fallback, got %q", name)
	}
}

func TestLoadCatalogOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labs.yaml")
	content := `
- id: brand
  priority: 1
  estimated_duration_ms: 30000
- id: audience
  priority: 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	brand, _ := catalog.Lab(models.LabBrand)
	if brand.Priority != 1 {
		t.Errorf("expected brand priority override 1, got %d", brand.Priority)
	}
	if brand.EstimatedDurationMs != 30000 {
		t.Errorf("expected duration override, got %d", brand.EstimatedDurationMs)
	}
	if brand.Name != "Brand Lab" {
		t.Errorf("unset override must keep default name, got %q", brand.Name)
	}
	if catalog.All()[0].ID != models.LabBrand {
		t.Errorf("expected brand first after override, got %s", catalog.All()[0].ID)
	}
}

func TestLoadCatalogRejectsUnknownLab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labs.yaml")
	if err := os.WriteFile(path, []byte("- id: nonsense\n  priority: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil || !strings.Contains(err.Error(), "unknown lab id") {
		t.Errorf("expected unknown lab id error, got %v", err)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
