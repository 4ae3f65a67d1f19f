package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"finance-tracker/internal/models"
)

// DBTestSuite provides a test suite for user store operations
type DBTestSuite struct {
	suite.Suite
	db *DB
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) TestCreateUser() {
	user, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), user.ID)
	assert.Equal(suite.T(), "a@ex.com", user.Email)
	assert.Equal(suite.T(), models.RoleUser, user.Role)
	assert.False(suite.T(), user.CreatedAt.IsZero())
}

func (suite *DBTestSuite) TestCreateUserDuplicateEmail() {
	_, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	_, err = suite.db.CreateUser("a@ex.com", "hash2", models.RoleAdmin)
	assert.ErrorIs(suite.T(), err, ErrDuplicateEmail)
}

func (suite *DBTestSuite) TestGetUserByEmailCaseSensitive() {
	_, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	user, err := suite.db.GetUserByEmail("a@ex.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "a@ex.com", user.Email)

	_, err = suite.db.GetUserByEmail("A@EX.com")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestListUsers() {
	_, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleAdmin)
	require.NoError(suite.T(), err)
	_, err = suite.db.CreateUser("b@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	users, err := suite.db.ListUsers()
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), users, 2)
}

func (suite *DBTestSuite) TestUpdateUserEmail() {
	user, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	updated, err := suite.db.UpdateUserEmail(user.ID, "new@ex.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "new@ex.com", updated.Email)
}

func (suite *DBTestSuite) TestUpdateUserEmailTaken() {
	_, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)
	other, err := suite.db.CreateUser("b@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	_, err = suite.db.UpdateUserEmail(other.ID, "a@ex.com")
	assert.ErrorIs(suite.T(), err, ErrDuplicateEmail)

	// Setting your own current email is not a conflict.
	updated, err := suite.db.UpdateUserEmail(other.ID, "b@ex.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "b@ex.com", updated.Email)
}

func (suite *DBTestSuite) TestUpdateUserRole() {
	user, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	updated, err := suite.db.UpdateUserRole(user.ID, models.RoleReadOnly)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RoleReadOnly, updated.Role)

	_, err = suite.db.UpdateUserRole("missing", models.RoleAdmin)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestUpdateUserPassword() {
	user, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.UpdateUserPassword(user.ID, "newhash"))

	reloaded, err := suite.db.GetUserByID(user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "newhash", reloaded.PasswordHash)
}

func (suite *DBTestSuite) TestDeleteUserCascades() {
	user, err := suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	tx, err := suite.db.CreateTransaction(user.ID, models.TypeExpense, dec("12.50"), "Food", "lunch", someDate())
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.DeleteUser(user.ID))

	_, err = suite.db.GetUserByID(user.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	_, err = suite.db.GetTransaction(tx.ID, user.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestDeleteUserMissing() {
	assert.ErrorIs(suite.T(), suite.db.DeleteUser("missing"), ErrNotFound)
}

func (suite *DBTestSuite) TestUserCount() {
	count, err := suite.db.UserCount()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, count)

	_, err = suite.db.CreateUser("a@ex.com", "hash", models.RoleUser)
	require.NoError(suite.T(), err)

	count, err = suite.db.UserCount()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func TestDBTestSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}
