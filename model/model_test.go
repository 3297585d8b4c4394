package model_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shrek82/jbulk/convert"
	"github.com/shrek82/jbulk/model"
	"github.com/shrek82/jbulk/schema"
)

type Audited struct {
	CreatedAt time.Time `jorm:"auto_time"`
	UpdatedAt time.Time `jorm:"auto_update"`
}

type Address struct {
	Street string
	City   string `jorm:"column:town"`
}

type Account struct {
	ID uuid.UUID `jorm:"pk"`
}

type Line struct {
	ID  int64 `jorm:"pk auto"`
	Qty int
}

type UserProfile struct {
	Audited
	ID       int64    `jorm:"pk auto"`
	UserName string   `jorm:"column:login size:64"`
	Token    string   `jorm:"-"`
	Version  int64    `jorm:"generated:add_update"`
	Home     *Address `jorm:"owned prefix:home_"`
	Work     Address  `jorm:"owned table:work_addresses"`
	Account  *Account
	Lines    []Line
	Roles    []Account `jorm:"many2many:user_roles"`
	Active   bool      `jorm:"converter:bool_int"`
	secret   string
}

type Named struct {
	ID int64
}

func (Named) TableName() string { return "custom_names" }

func TestParseTag(t *testing.T) {
	tag := model.ParseTag("column:user_name pk;auto, size:255 notnull generated:ADD")
	if tag.Column != "user_name" || !tag.PrimaryKey || !tag.AutoInc || !tag.NotNull {
		t.Errorf("unexpected tag: %+v", tag)
	}
	if tag.Size != 255 || tag.Generated != "add" {
		t.Errorf("size/generated: %d %q", tag.Size, tag.Generated)
	}

	if !model.ParseTag("-").Ignore {
		t.Error("- should ignore the field")
	}

	tag = model.ParseTag("owned table:addresses prefix:ship_ converter:json")
	if !tag.Owned || tag.Table != "addresses" || tag.Prefix != "ship_" || tag.Converter != "json" {
		t.Errorf("unexpected owned tag: %+v", tag)
	}

	tag = model.ParseTag("many2many:user_roles join_fk:user_id")
	if tag.RelationType != "many_to_many" || tag.JoinTable != "user_roles" || tag.JoinFK != "user_id" {
		t.Errorf("unexpected relation tag: %+v", tag)
	}
}

func TestEntityFields(t *testing.T) {
	reg := model.NewRegistry()
	m, err := reg.Entity(&UserProfile{})
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if m.TableName != "user_profile" || m.Owned {
		t.Errorf("table = %s, owned = %v", m.TableName, m.Owned)
	}

	var columns []string
	for _, f := range m.Fields {
		columns = append(columns, f.Column)
	}
	want := []string{"created_at", "updated_at", "id", "login", "version", "active"}
	if !reflect.DeepEqual(columns, want) {
		t.Errorf("columns = %v, want %v", columns, want)
	}

	if m.PKField == nil || m.PKField.Name != "ID" || m.PKField.Generated != schema.OnAdd {
		t.Errorf("unexpected pk: %+v", m.PKField)
	}
	if f, _ := m.Field("Version"); f.Generated != schema.OnAddOrUpdate {
		t.Errorf("version generated = %v", f.Generated)
	}
	if f, _ := m.Field("CreatedAt"); len(f.Index) != 2 || !f.AutoTime {
		t.Errorf("embedded field = %+v", f)
	}
	if f, _ := m.Field("Active"); f.Converter == nil || f.Converter.ProviderType() != reflect.TypeFor[int64]() {
		t.Errorf("active converter = %v", f.Converter)
	}
	if _, ok := m.Field("Token"); ok {
		t.Error("ignored field was mapped")
	}
	if _, ok := m.Field("secret"); ok {
		t.Error("unexported field was mapped")
	}
}

func TestEntityRelations(t *testing.T) {
	reg := model.NewRegistry()
	m, err := reg.Entity(UserProfile{})
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]model.RelationType{
		"Account": model.RelationBelongsTo,
		"Lines":   model.RelationHasMany,
		"Roles":   model.RelationManyToMany,
		"Home":    model.RelationOwnsOne,
	}
	for name, typ := range cases {
		rel, ok := m.Relations[name]
		if !ok {
			t.Errorf("%s: relation missing", name)
			continue
		}
		if rel.Type != typ {
			t.Errorf("%s: type = %s, want %s", name, rel.Type, typ)
		}
		if m.FindNavigation(name) == nil {
			t.Errorf("%s: not a navigation", name)
		}
	}
	if rel := m.Relations["Account"]; rel.ForeignKey != "account_id" {
		t.Errorf("belongs_to foreign key = %s", rel.ForeignKey)
	}
	if rel := m.Relations["Lines"]; rel.ForeignKey != "user_profile_id" || rel.Target != reflect.TypeFor[Line]() {
		t.Errorf("has_many = %+v", rel)
	}
}

func TestOwnedTypes(t *testing.T) {
	reg := model.NewRegistry()
	owner, err := reg.Entity(&UserProfile{})
	if err != nil {
		t.Fatal(err)
	}
	addrType := reflect.TypeFor[Address]()

	home := reg.FindOwnedEntityType(addrType, "Home", owner)
	if home == nil || !home.IsOwned() || home.Table() != "user_profile" {
		t.Fatalf("home owned type = %v", home)
	}
	col := home.FindProperty("City").FindColumn(schema.Table("user_profile"))
	if col == nil || col.Name != "home_town" {
		t.Errorf("home city column = %v", col)
	}

	work := reg.FindOwnedEntityType(addrType, "Work", owner)
	if work == nil || work.Table() != "work_addresses" {
		t.Fatalf("work owned type = %v", work)
	}
	if work.FindProperty("Street").FindColumn(schema.Table("user_profile")) != nil {
		t.Error("work street should not map to the owner table")
	}

	if reg.FindOwnedEntityType(addrType, "Missing", owner) != nil {
		t.Error("unknown owned field resolved")
	}
	if et := reg.FindEntityType(addrType); et == nil || !et.IsOwned() {
		t.Error("owned type not registered by type")
	}
}

func TestRegisterOwned(t *testing.T) {
	reg := model.NewRegistry()
	m, err := reg.RegisterOwned(&Address{}, "addresses")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Owned || m.TableName != "addresses" {
		t.Errorf("unexpected owned model: %+v", m)
	}
	if reg.FindEntityType(reflect.TypeFor[Address]()) != schema.EntityType(m) {
		t.Error("owned type not found by type")
	}
}

func TestTabler(t *testing.T) {
	m, err := model.NewRegistry().Entity(&Named{})
	if err != nil {
		t.Fatal(err)
	}
	if m.TableName != "custom_names" {
		t.Errorf("table = %s", m.TableName)
	}
}

type badConverter struct {
	ID   int64
	Data []byte `jorm:"converter:rot13"`
}

type badGenerated struct {
	ID int64 `jorm:"generated:sometimes"`
}

type duplicate struct {
	A string `jorm:"column:x"`
	B string `jorm:"column:x"`
}

func TestInvalidModels(t *testing.T) {
	reg := model.NewRegistry()

	if _, err := reg.Entity(&badConverter{}); !errors.Is(err, model.ErrInvalidModel) || !errors.Is(err, convert.ErrUnknownConverter) {
		t.Errorf("unknown converter: %v", err)
	}
	if _, err := reg.Entity(&badGenerated{}); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("bad generated: %v", err)
	}
	if _, err := reg.Entity(&duplicate{}); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("duplicate column: %v", err)
	}
	if _, err := reg.Entity(nil); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("nil value: %v", err)
	}
	if _, err := reg.Entity(42); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("non-struct: %v", err)
	}
}

func TestEntityCache(t *testing.T) {
	reg := model.NewRegistry()
	first, err := reg.Entity(&UserProfile{})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, v := range []any{UserProfile{}, []UserProfile{}, []*UserProfile{}, reflect.TypeFor[UserProfile]()} {
				m, err := reg.Entity(v)
				if err != nil || m != first {
					t.Errorf("Entity(%T) returned a different model", v)
				}
			}
		}()
	}
	wg.Wait()
}

type Geo struct {
	Lat float64
	Lng float64
}

type Store struct {
	ID  int64 `jorm:"pk auto"`
	Loc Geo   `jorm:"owned"`
}

type Plain struct {
	ID int64 `jorm:"pk"`
}

func TestOwnedEntityConflict(t *testing.T) {
	reg := model.NewRegistry()
	if _, err := reg.Entity(&Geo{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Entity(&Store{}); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("owner of an entity type: %v", err)
	}
	if _, err := reg.RegisterOwned(&Geo{}, "geo"); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("RegisterOwned of an entity type: %v", err)
	}
	if m, err := reg.Entity(&Geo{}); err != nil || m.Owned {
		t.Errorf("entity mapping changed: %+v, %v", m, err)
	}

	reg = model.NewRegistry()
	if _, err := reg.Entity(&Store{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Entity(&Geo{}); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("entity of an owned type: %v", err)
	}
	if _, err := reg.Entity([]Geo{}); !errors.Is(err, model.ErrInvalidModel) {
		t.Errorf("entity of an owned slice: %v", err)
	}
}

func TestOnChange(t *testing.T) {
	reg := model.NewRegistry()
	var calls int
	reg.OnChange(func() { calls++ })

	if _, err := reg.Entity(&Plain{}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("plain entity: %d calls", calls)
	}

	if _, err := reg.Entity(&Store{}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("entity with a new owned type: %d calls, want 1", calls)
	}
	if _, err := reg.Entity(&Store{}); err != nil || calls != 1 {
		t.Errorf("cached entity: %d calls, %v", calls, err)
	}

	if _, err := reg.RegisterOwned(&Geo{}, "geo"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("RegisterOwned: %d calls, want 2", calls)
	}
}
