package tutor

import (
	"fmt"
	"strings"
)

// Fixed lines spoken by the lecture dialogue.
const (
	lectureFarewell   = "Thanks for learning with me today! Goodbye!"
	lectureReprompt   = "I didn't hear your answer. Could you please try again?"
	lectureTransition = "Let's move to the next question!"
)

// Fixed lines spoken by the chat dialogue.
const (
	chatWelcome    = "Hello! I'm your English practice buddy. We'll have fun conversations together to help you learn. Let's start!"
	chatFarewell   = "Thanks for practicing English with me today! Goodbye!"
	chatReprompt   = "I didn't hear you. Could you please try again?"
	chatTransition = "Let's try something new now!"
)

// Apology is spoken after a turn fails, before the turn restarts.
const Apology = "I'm having some trouble. Let's try again."

func lectureWelcome(subject string) string {
	return fmt.Sprintf("Hi there! I'm your learning buddy. Today we're going to learn about %s. Lets start the lesson?", subject)
}

func lectureCorrect(answer string) string {
	return "Great job! That's correct. " + answer
}

func lecturePartial(answer string) string {
	return "That's partly right! The complete answer is: " + answer
}

func lectureComplete(subject string) string {
	return fmt.Sprintf("Congratulations! You've completed all the questions for this lesson. You did a great job learning about %s!", subject)
}

func chatComplete(p *Profile) string {
	interests := "learning English"
	if len(p.Interests) > 0 {
		interests = strings.Join(p.Interests[:min(2, len(p.Interests))], ", ")
	}
	return fmt.Sprintf("Great job today! I noticed you're interested in %s. Your %s is getting better! Would you like to practice again soon?",
		interests, p.FeedbackFocus)
}
