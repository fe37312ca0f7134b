package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo users and swipes.
//
// Behavior:
//  1. Clears existing data in all matching tables.
//  2. Creates 20 active users (10 male, 10 female) with hashed passwords and
//     locations scattered around a city center.
//  3. Generates ~200 likes with ~70% like ratio, every 3rd guaranteed mutual.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"likes", "matches", "blocks", "daily_picks", "users"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	// --- Seed Users (10 male, 10 female) ---
	smoking := []string{"NEVER", "SOCIALLY", "REGULARLY"}
	drinking := []string{"NEVER", "SOCIALLY", "REGULARLY"}
	kids := []string{"WANTS", "UNSURE", "DOES_NOT_WANT"}

	ids := make([]string, 0, 20)
	users := make(map[string]*User, 20)

	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		gender, interestedIn := "male", "female"
		if i > 10 {
			gender, interestedIn = "female", "male"
		}

		user := User{
			ID:            uuid.NewString(),
			Name:          fmt.Sprintf("user%d", i),
			Email:         fmt.Sprintf("user%d@example.com", i),
			PasswordHash:  string(hash),
			State:         UserStateActive,
			Gender:        gender,
			InterestedIn:  interestedIn,
			Age:           22 + r.Intn(15),
			MinAge:        18,
			MaxAge:        60,
			Lat:           51.5074 + (r.Float64()-0.5)*0.2,
			Lon:           -0.1278 + (r.Float64()-0.5)*0.2,
			MaxDistanceKm: 50,
			Smoking:       smoking[r.Intn(len(smoking))],
			Drinking:      drinking[r.Intn(len(drinking))],
			WantsKids:     kids[r.Intn(len(kids))],
		}

		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		ids = append(ids, user.ID)
		users[user.ID] = &user
	}
	log.Println("Seeded 20 users.")

	// --- Seed Likes (~200) ---
	counter := 0
	for _, fromID := range ids {
		for j := 0; j < 12; j++ {
			toID := ids[r.Intn(len(ids))]
			if fromID == toID {
				continue
			}
			if users[fromID].Gender == users[toID].Gender {
				continue
			}

			direction := DirectionPass
			if r.Intn(100) < 70 {
				direction = DirectionLike
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				direction = DirectionLike
				recip := Like{FromID: toID, ToID: fromID, Direction: DirectionLike}
				database.Clauses(clause.OnConflict{DoNothing: true}).Create(&recip)
			}

			like := Like{FromID: fromID, ToID: toID, Direction: direction}
			if err := database.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}

			counter++
		}
	}

	return nil
}
