package scene

import "testing"

func TestCatalogResolve(t *testing.T) {
	c := NewCatalog()
	c.Add(Asset{Path: "Assets/Materials/Steel.mat", Type: "Material"})

	v, ok := c.ResolveAsset("Assets/Materials/Steel.mat")
	if !ok {
		t.Fatal("Asset not found")
	}
	if a := v.(Asset); a.Type != "Material" {
		t.Errorf("Asset = %+v", a)
	}

	if _, ok := c.ResolveAsset("Assets/Missing.mat"); ok {
		t.Error("Missing asset should not resolve")
	}
}

func TestCatalogPaths(t *testing.T) {
	c := NewCatalog()
	c.Add(Asset{Path: "b"})
	c.Add(Asset{Path: "a"})
	c.Add(Asset{Path: "a"})

	paths := c.Paths()
	if len(paths) != 2 || paths[0] != "a" || paths[1] != "b" {
		t.Errorf("Paths = %v", paths)
	}
}
