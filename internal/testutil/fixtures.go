package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"idea-portal/internal/models"
)

// Fixtures holds seeded test data
type Fixtures struct {
	Admin     *models.User
	Manager   *models.User
	Manager2  *models.User
	Employee  *models.User
	Employee2 *models.User
	Template  *models.Template
}

// SetupFixtures seeds users for every role and one active template
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	return &Fixtures{
		Admin:     createUser(t, db, "admin@test.com", "Ada", "Admin", models.RoleAdmin),
		Manager:   createUser(t, db, "manager@test.com", "Max", "Manager", models.RoleManager),
		Manager2:  createUser(t, db, "manager2@test.com", "Mira", "Manager", models.RoleManager),
		Employee:  createUser(t, db, "employee@test.com", "Eli", "Employee", models.RoleEmployee),
		Employee2: createUser(t, db, "employee2@test.com", "Eva", "Employee", models.RoleEmployee),
		Template:  createTemplate(t, db),
	}
}

// createUser creates a user holding the given roles; the password is always password123
func createUser(t *testing.T, db *sql.DB, email, firstName, lastName string, roles ...string) *models.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{Email: email, FirstName: firstName, LastName: lastName, IsActive: true}
	err = db.QueryRow(`
		INSERT INTO users (email, password_hash, first_name, last_name, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, updated_at
	`, email, string(hashedPassword), firstName, lastName).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	user.PasswordHash = string(hashedPassword)

	for _, role := range roles {
		_, err := db.Exec(`
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = $2
		`, user.ID, role)
		if err != nil {
			t.Fatalf("Failed to assign role %s to user %s: %v", role, email, err)
		}
	}

	return user
}

// TestCriteria is the criteria set of the seeded template
func TestCriteria() []models.Criterion {
	return []models.Criterion{
		{ID: "impact", Name: "Impact", Weight: 30},
		{ID: "feasibility", Name: "Feasibility", Weight: 20},
		{ID: "cost", Name: "Cost", Weight: 50},
	}
}

// TestFields is the form schema of the seeded template
func TestFields() []models.TemplateField {
	return []models.TemplateField{
		{ID: "summary", Label: "Summary", Kind: models.FieldText, Required: true},
		{ID: "savings", Label: "Estimated savings", Kind: models.FieldNumber},
		{ID: "pilot", Label: "Pilot ready", Kind: models.FieldBoolean},
	}
}

func createTemplate(t *testing.T, db *sql.DB) *models.Template {
	t.Helper()

	fields, err := json.Marshal(TestFields())
	if err != nil {
		t.Fatalf("Failed to encode fields: %v", err)
	}
	criteria, err := json.Marshal(TestCriteria())
	if err != nil {
		t.Fatalf("Failed to encode criteria: %v", err)
	}

	tpl := &models.Template{
		Title:    "Process improvement",
		Fields:   TestFields(),
		Criteria: TestCriteria(),
		IsActive: true,
	}
	err = db.QueryRow(`
		INSERT INTO templates (title, description, fields, criteria, is_active)
		VALUES ($1, '', $2, $3, TRUE)
		RETURNING id, created_at, updated_at
	`, tpl.Title, fields, criteria).Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create template: %v", err)
	}
	return tpl
}
