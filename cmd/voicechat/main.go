// Command voicechat runs a live two-way voice conversation with the
// OpenAI Realtime API: microphone audio streams up over a websocket,
// synthesized speech streams back, and speaking over the assistant
// interrupts it mid-sentence.
package main

func main() {
	Execute()
}
