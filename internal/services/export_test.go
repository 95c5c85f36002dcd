package services

// SetBcryptCost lets tests hash passwords at the minimum cost.
func (u *UserService) SetBcryptCost(cost int) { u.bcrypt = cost }

// SetReferralCodeGenerator replaces the code source used by Signup.
func (u *UserService) SetReferralCodeGenerator(gen func() string) { u.newCode = gen }
